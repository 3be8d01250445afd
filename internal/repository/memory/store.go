// Package memory is an in-process implementation of the repository
// interfaces. It backs the service when no Postgres DSN is configured and is
// used by tests. Transactions snapshot the whole store and restore it when the
// callback fails; writes outside a transaction wait for the open one to finish
// so a rollback never discards them.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/repository"
)

type state struct {
	users        map[int64]domain.User
	clients      map[int64]domain.Client
	interactions map[int64]domain.Interaction
	history      map[int64]domain.InteractionHistory
	nextID       int64
}

func (s *state) clone() *state {
	c := &state{
		users:        make(map[int64]domain.User, len(s.users)),
		clients:      make(map[int64]domain.Client, len(s.clients)),
		interactions: make(map[int64]domain.Interaction, len(s.interactions)),
		history:      make(map[int64]domain.InteractionHistory, len(s.history)),
		nextID:       s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.interactions {
		if v.EndTime != nil {
			end := *v.EndTime
			v.EndTime = &end
		}
		c.interactions[k] = v
	}
	for k, v := range s.history {
		if v.UserID != nil {
			id := *v.UserID
			v.UserID = &id
		}
		c.history[k] = v
	}
	return c
}

// Store holds all tables in memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			users:        map[int64]domain.User{},
			clients:      map[int64]domain.Client{},
			interactions: map[int64]domain.Interaction{},
			history:      map[int64]domain.InteractionHistory{},
		},
		now: time.Now,
	}
}

// SetClock overrides the time source used for defaults such as start_time.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// autocommit makes a write issued outside WithinTx its own one-statement
// transaction. It returns the release func.
func (s *Store) autocommit(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// WithinTx serializes transactions and rolls the store back when fn fails.
// A nested call joins the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, s)

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Users() repository.UserRepository { return userRepo{s} }

func (s *Store) Clients() repository.ClientRepository { return clientRepo{s} }

func (s *Store) Interactions() repository.InteractionRepository { return interactionRepo{s} }

func (s *Store) History() repository.InteractionHistoryRepository { return historyRepo{s} }

func (s *Store) Reports() repository.ReportRepository { return reportRepo{s} }

func (s *Store) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicate, constraint)
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *domain.User) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.users {
		if existing.Username == user.Username {
			return duplicate("users_username_key")
		}
	}
	now := r.s.now()
	user.ID = r.s.id()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) Update(ctx context.Context, user *domain.User) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range r.s.data.users {
		if id != user.ID && existing.Username == user.Username {
			return duplicate("users_username_key")
		}
	}
	user.UpdatedAt = r.s.now()
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.data.users, id)
	for iid, interaction := range r.s.data.interactions {
		if interaction.UserID == id {
			r.s.deleteInteractionLocked(iid)
		}
	}
	for hid, entry := range r.s.data.history {
		if entry.UserID != nil && *entry.UserID == id {
			entry.UserID = nil
			r.s.data.history[hid] = entry
		}
	}
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.data.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.data.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.User, 0, len(r.s.data.users))
	for _, user := range r.s.data.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

type clientRepo struct{ s *Store }

func (r clientRepo) Create(ctx context.Context, client *domain.Client) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.clients {
		if existing.Phone == client.Phone {
			return duplicate("clients_phone_key")
		}
	}
	client.ID = r.s.id()
	client.CreatedAt = r.s.now()
	r.s.data.clients[client.ID] = *client
	return nil
}

func (r clientRepo) GetByID(_ context.Context, id int64) (*domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	client, ok := r.s.data.clients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &client, nil
}

func (r clientRepo) GetByPhone(_ context.Context, phone string) (*domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, client := range r.s.data.clients {
		if client.Phone == phone {
			c := client
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r clientRepo) List(_ context.Context) ([]domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.Client, 0, len(r.s.data.clients))
	for _, client := range r.s.data.clients {
		result = append(result, client)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type interactionRepo struct{ s *Store }

func (r interactionRepo) Create(ctx context.Context, interaction *domain.Interaction) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkInteractionRefsLocked(interaction); err != nil {
		return err
	}
	if interaction.StartTime.IsZero() {
		interaction.StartTime = r.s.now()
	}
	interaction.ID = r.s.id()
	r.s.data.interactions[interaction.ID] = *interaction
	return nil
}

func (r interactionRepo) Update(ctx context.Context, interaction *domain.Interaction) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.data.interactions[interaction.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if err := r.s.checkInteractionRefsLocked(interaction); err != nil {
		return err
	}
	existing.ClientID = interaction.ClientID
	existing.Channel = interaction.Channel
	existing.Category = interaction.Category
	existing.Description = interaction.Description
	existing.Status = interaction.Status
	existing.HadRemoteSession = interaction.HadRemoteSession
	existing.EndTime = interaction.EndTime
	r.s.data.interactions[interaction.ID] = existing
	return nil
}

func (r interactionRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.interactions[id]; !ok {
		return pgx.ErrNoRows
	}
	r.s.deleteInteractionLocked(id)
	return nil
}

func (r interactionRepo) GetByID(_ context.Context, id int64) (*domain.Interaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	interaction, ok := r.s.data.interactions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	view := r.s.viewLocked(interaction)
	return &view, nil
}

// GetForUpdate needs no row lock: transactions are serialized by txMu.
func (r interactionRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Interaction, error) {
	return r.GetByID(ctx, id)
}

func (r interactionRepo) List(_ context.Context, filter repository.InteractionFilter) ([]domain.Interaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []domain.Interaction{}
	for _, interaction := range r.s.data.interactions {
		if !matches(interaction, filter.UserID, filter.StartFrom, filter.StartTo) {
			continue
		}
		result = append(result, r.s.viewLocked(interaction))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.After(result[j].StartTime)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (s *Store) checkInteractionRefsLocked(interaction *domain.Interaction) error {
	if _, ok := s.data.users[interaction.UserID]; !ok {
		return fmt.Errorf("interactions_user_id_fkey: user %d does not exist", interaction.UserID)
	}
	if _, ok := s.data.clients[interaction.ClientID]; !ok {
		return fmt.Errorf("interactions_client_id_fkey: client %d does not exist", interaction.ClientID)
	}
	if !interaction.Status.Valid() {
		return fmt.Errorf("interactions_status_check: invalid status %q", interaction.Status)
	}
	return nil
}

func (s *Store) deleteInteractionLocked(id int64) {
	delete(s.data.interactions, id)
	for hid, entry := range s.data.history {
		if entry.InteractionID == id {
			delete(s.data.history, hid)
		}
	}
}

func (s *Store) viewLocked(interaction domain.Interaction) domain.Interaction {
	if client, ok := s.data.clients[interaction.ClientID]; ok {
		interaction.ClientName = client.Name
		interaction.ClientPhone = client.Phone
	}
	if user, ok := s.data.users[interaction.UserID]; ok {
		interaction.Username = user.Username
	}
	if interaction.EndTime != nil {
		end := *interaction.EndTime
		interaction.EndTime = &end
	}
	return interaction
}

func matches(interaction domain.Interaction, userID *int64, from, to *time.Time) bool {
	if userID != nil && interaction.UserID != *userID {
		return false
	}
	if from != nil && interaction.StartTime.Before(*from) {
		return false
	}
	if to != nil && !interaction.StartTime.Before(*to) {
		return false
	}
	return true
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(ctx context.Context, history *domain.InteractionHistory) error {
	defer r.s.autocommit(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.interactions[history.InteractionID]; !ok {
		return fmt.Errorf("interaction_history_interaction_id_fkey: interaction %d does not exist", history.InteractionID)
	}
	history.ID = r.s.id()
	if history.Timestamp.IsZero() {
		history.Timestamp = r.s.now()
	}
	r.s.data.history[history.ID] = *history
	return nil
}

func (r historyRepo) ListByInteraction(_ context.Context, interactionID int64) ([]domain.InteractionHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []domain.InteractionHistory{}
	for _, entry := range r.s.data.history {
		if entry.InteractionID != interactionID {
			continue
		}
		if entry.UserID != nil {
			if user, ok := r.s.data.users[*entry.UserID]; ok {
				entry.Username = user.Username
			}
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type reportRepo struct{ s *Store }

func (r reportRepo) CountByStatus(_ context.Context, filter repository.ReportFilter) ([]domain.GroupCount, error) {
	return r.groupBy(filter, false, func(i domain.Interaction, _ domain.User) string { return string(i.Status) }), nil
}

func (r reportRepo) CountByCategory(_ context.Context, filter repository.ReportFilter) ([]domain.GroupCount, error) {
	return r.groupBy(filter, false, func(i domain.Interaction, _ domain.User) string { return string(i.Category) }), nil
}

func (r reportRepo) CountByAgent(_ context.Context, filter repository.ReportFilter) ([]domain.GroupCount, error) {
	return r.groupBy(filter, true, func(_ domain.Interaction, u domain.User) string { return u.Username }), nil
}

func (r reportRepo) groupBy(filter repository.ReportFilter, agentsOnly bool, label func(domain.Interaction, domain.User) string) []domain.GroupCount {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[string]int64{}
	for _, interaction := range r.s.data.interactions {
		if !matches(interaction, filter.UserID, filter.StartFrom, filter.StartTo) {
			continue
		}
		user, ok := r.s.data.users[interaction.UserID]
		if !ok || (agentsOnly && user.IsSupervisor) {
			continue
		}
		counts[label(interaction, user)]++
	}
	result := make([]domain.GroupCount, 0, len(counts))
	for k, v := range counts {
		result = append(result, domain.GroupCount{Label: k, Count: v})
	}
	domain.SortGroupCounts(result)
	return result
}

// String summarises table sizes; handy in test failure output.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("users=%d clients=%d interactions=%d history=%d",
		len(s.data.users), len(s.data.clients), len(s.data.interactions), len(s.data.history))
}
