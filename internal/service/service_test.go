package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/events"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	"github.com/spec-kit/interaction-tracker/internal/repository/memory"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

type fixture struct {
	store        *memory.Store
	clock        *fakeClock
	events       []events.Event
	auth         *AuthService
	interactions *InteractionService
	users        *UserService
	clients      *ClientService
	reports      *ReportService
	agent        domain.Actor
	other        domain.Actor
	chief        domain.Actor
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)

	f := &fixture{store: store, clock: clock}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	}
	for _, et := range []events.EventType{events.EventInteractionCreated, events.EventInteractionStatusChanged, events.EventInteractionDeleted, events.EventUserDeleted} {
		dispatcher.Subscribe(et, record)
	}

	policy := auth.NewPolicy(true)
	hasher := auth.NewPasswordHasher(4)
	f.auth = NewAuthService(AuthDependencies{
		Users:       store.Users(),
		Hasher:      hasher,
		Tokens:      auth.NewTokenManager("secret", time.Hour),
		Revoked:     auth.NewMemoryRevocationList(),
		SessionTTL:  time.Hour,
		RememberTTL: 24 * time.Hour,
	})
	f.interactions = NewInteractionService(InteractionDependencies{
		Tx:             store,
		Interactions:   store.Interactions(),
		Clients:        store.Clients(),
		History:        store.History(),
		Dispatcher:     dispatcher,
		Policy:         policy,
		HistoryEnabled: true,
		Location:       time.UTC,
		Clock:          clock.Now,
	})
	f.users = NewUserService(store.Users(), hasher, policy, dispatcher)
	f.clients = NewClientService(store.Clients())
	f.reports = NewReportService(ReportDependencies{
		Reports:      store.Reports(),
		Users:        store.Users(),
		Interactions: store.Interactions(),
		Policy:       policy,
		Location:     time.UTC,
	})

	ctx := context.Background()
	ana, err := f.auth.Register(ctx, "ana", "x", "x")
	require.NoError(t, err)
	beto, err := f.auth.Register(ctx, "beto", "y", "y")
	require.NoError(t, err)
	chief, err := f.auth.CreateAdmin(ctx, "chief", "z", "z")
	require.NoError(t, err)
	f.agent, f.other, f.chief = ana.Actor(), beto.Actor(), chief.Actor()
	return f
}

func sampleInput() InteractionInput {
	return InteractionInput{
		ClientName:  "Maria",
		ClientPhone: "5511999990000",
		Channel:     domain.ChannelWhatsApp,
		Category:    domain.CategorySupport,
		Description: "printer offline",
	}
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	assert.Equal(t, code, de.Code)
	return de
}

func (f *fixture) history(t *testing.T, id int64) []domain.InteractionHistory {
	t.Helper()
	entries, err := f.store.History().ListByInteraction(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func TestCreateWritesInitialHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.Equal(t, "Maria", created.ClientName)
	assert.Equal(t, "ana", created.Username)
	assert.Equal(t, f.clock.now, created.StartTime)
	assert.Nil(t, created.EndTime)

	entries := f.history(t, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryInitialValue, entries[0].OldValue)
	assert.Equal(t, string(domain.StatusOpen), entries[0].NewValue)
	assert.Equal(t, domain.HistoryFieldStatus, entries[0].FieldChanged)

	require.Len(t, f.events, 1)
	assert.Equal(t, events.EventInteractionCreated, f.events[0].Type)
}

func TestCreateWithoutHistory(t *testing.T) {
	f := newFixture(t)
	f.interactions.historyEnabled = false

	created, err := f.interactions.Create(context.Background(), f.agent, sampleInput())
	require.NoError(t, err)
	assert.Empty(t, f.history(t, created.ID))
}

func TestCreateReusesClientByPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)
	input := sampleInput()
	input.ClientName = "Maria S."
	second, err := f.interactions.Create(ctx, f.other, input)
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID)
	clients, err := f.clients.List(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	byID := sampleInput()
	byID.ClientID = &first.ClientID
	byID.ClientName, byID.ClientPhone = "", ""
	third, err := f.interactions.Create(ctx, f.agent, byID)
	require.NoError(t, err)
	assert.Equal(t, first.ClientID, third.ClientID)

	missing := int64(9999)
	byID.ClientID = &missing
	_, err = f.interactions.Create(ctx, f.agent, byID)
	de := requireCode(t, err, "VALIDATION_FAILED")
	assert.Contains(t, de.Details, "client_id")
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	input := sampleInput()
	input.Description = "   "
	input.Category = "Vendas"
	input.Status = "Fechado"

	_, err := f.interactions.Create(context.Background(), f.agent, input)
	de := requireCode(t, err, "VALIDATION_FAILED")
	assert.Contains(t, de.Details, "description")
	assert.Contains(t, de.Details, "category")
	assert.Contains(t, de.Details, "status")
	assert.Contains(t, f.store.String(), "interactions=0")
}

func TestUpdateAppendsHistoryOnlyOnStatusChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)

	input := sampleInput()
	input.Description = "printer back online"
	input.Category = domain.CategoryTechnicalQuestion
	input.Status = domain.StatusOpen
	_, err = f.interactions.Update(ctx, f.agent, created.ID, input)
	require.NoError(t, err)
	assert.Len(t, f.history(t, created.ID), 1)

	f.clock.now = f.clock.now.Add(time.Hour)
	input.Status = domain.StatusResolved
	updated, err := f.interactions.Update(ctx, f.chief, created.ID, input)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, updated.Status)
	require.NotNil(t, updated.EndTime)
	assert.Equal(t, f.clock.now, *updated.EndTime)

	entries := f.history(t, created.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "Aberto", entries[1].OldValue)
	assert.Equal(t, "Resolvido", entries[1].NewValue)
	require.NotNil(t, entries[1].UserID)
	assert.Equal(t, f.chief.ID, *entries[1].UserID)

	input.Status = domain.StatusPending
	reopened, err := f.interactions.Update(ctx, f.chief, created.ID, input)
	require.NoError(t, err)
	assert.Nil(t, reopened.EndTime)
	assert.Len(t, f.history(t, created.ID), 3)
}

// staleReads serves GetByID from a copy taken earlier, as a concurrent
// request that loaded the row before another edit committed would see it.
type staleReads struct {
	repository.InteractionRepository
	stale domain.Interaction
}

func (r staleReads) GetByID(_ context.Context, _ int64) (*domain.Interaction, error) {
	copied := r.stale
	return &copied, nil
}

func TestUpdateRecordsStoredStatusAfterConcurrentEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)

	input := sampleInput()
	input.Status = domain.StatusPending
	_, err = f.interactions.Update(ctx, f.chief, created.ID, input)
	require.NoError(t, err)

	lagging := NewInteractionService(InteractionDependencies{
		Tx:             f.store,
		Interactions:   staleReads{InteractionRepository: f.store.Interactions(), stale: *created},
		Clients:        f.store.Clients(),
		History:        f.store.History(),
		Dispatcher:     events.NewInMemoryDispatcher(),
		Policy:         auth.NewPolicy(true),
		HistoryEnabled: true,
		Location:       time.UTC,
		Clock:          f.clock.Now,
	})
	input.Status = domain.StatusResolved
	_, err = lagging.Update(ctx, f.agent, created.ID, input)
	require.NoError(t, err)

	entries := f.history(t, created.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, string(domain.StatusOpen), entries[1].OldValue)
	assert.Equal(t, string(domain.StatusPending), entries[1].NewValue)
	assert.Equal(t, string(domain.StatusPending), entries[2].OldValue)
	assert.Equal(t, string(domain.StatusResolved), entries[2].NewValue)
}

func TestUpdateAccessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)

	input := sampleInput()
	input.Status = domain.StatusResolved
	_, err = f.interactions.Update(ctx, f.other, created.ID, input)
	requireCode(t, err, "DENIED")

	_, err = f.interactions.Update(ctx, f.agent, created.ID, input)
	require.NoError(t, err)

	// resolved interactions are locked for the owner
	_, err = f.interactions.Update(ctx, f.agent, created.ID, input)
	de := requireCode(t, err, "DENIED")
	assert.Equal(t, auth.MsgResolvedLocked, de.Message)
	assert.Equal(t, "/index", de.Redirect)

	_, err = f.interactions.Update(ctx, f.chief, created.ID, input)
	assert.NoError(t, err)

	_, err = f.interactions.Update(ctx, f.chief, 424242, input)
	requireCode(t, err, "NOT_FOUND")
}

func TestDeleteInteraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)

	requireCode(t, f.interactions.Delete(ctx, f.other, created.ID), "DENIED")
	require.NoError(t, f.interactions.Delete(ctx, f.agent, created.ID))
	assert.Empty(t, f.history(t, created.ID))
	requireCode(t, f.interactions.Delete(ctx, f.agent, created.ID), "NOT_FOUND")
}

func TestGetHidesHistoryFromAgents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)

	detail, err := f.interactions.Get(ctx, f.agent, created.ID)
	require.NoError(t, err)
	assert.False(t, detail.HistoryVisible)
	assert.Empty(t, detail.History)
	assert.True(t, detail.CanEdit)

	detail, err = f.interactions.Get(ctx, f.chief, created.ID)
	require.NoError(t, err)
	assert.True(t, detail.HistoryVisible)
	assert.Len(t, detail.History, 1)

	_, err = f.interactions.Get(ctx, f.other, created.ID)
	requireCode(t, err, "DENIED")
}

func TestListDayScopesByOwnerAndWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	stamps := []time.Time{
		today.Add(-time.Minute),
		today,
		today.Add(12 * time.Hour),
		today.Add(24*time.Hour - time.Second),
	}
	for _, at := range stamps {
		f.clock.now = at
		_, err := f.interactions.Create(ctx, f.agent, sampleInput())
		require.NoError(t, err)
	}
	f.clock.now = today.Add(13 * time.Hour)
	_, err := f.interactions.Create(ctx, f.other, sampleInput())
	require.NoError(t, err)

	mine, err := f.interactions.ListDay(ctx, f.agent, today.Add(9*time.Hour))
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, stamps[3], mine[0].StartTime)
	assert.Equal(t, stamps[1], mine[2].StartTime)
	for _, item := range mine {
		assert.Equal(t, f.agent.ID, item.UserID)
	}

	all, err := f.interactions.ListDay(ctx, f.chief, today)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	everything, err := f.interactions.ListAll(ctx, f.chief)
	require.NoError(t, err)
	assert.Len(t, everything, 5)

	_, err = f.interactions.ListAll(ctx, f.agent)
	requireCode(t, err, "DENIED")
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "ana", "x", "x")
	de := requireCode(t, err, "VALIDATION_FAILED")
	assert.Equal(t, MsgUsernameTaken, de.Details["username"])

	_, err = f.auth.Register(ctx, "carla", "a", "b")
	de = requireCode(t, err, "VALIDATION_FAILED")
	assert.Equal(t, MsgPasswordMismatch, de.Details["password2"])

	_, err = f.auth.Login(ctx, "ana", "wrong", false)
	wrongPassword := requireCode(t, err, "INVALID_CREDENTIALS")
	_, err = f.auth.Login(ctx, "nobody", "x", false)
	unknownUser := requireCode(t, err, "INVALID_CREDENTIALS")
	assert.Equal(t, wrongPassword.Message, unknownUser.Message)
	assert.Equal(t, MsgInvalidCredentials, unknownUser.Message)

	session, err := f.auth.Login(ctx, "ana", "x", false)
	require.NoError(t, err)
	assert.Equal(t, f.agent.ID, session.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	remembered, err := f.auth.Login(ctx, "ana", "x", true)
	require.NoError(t, err)
	assert.True(t, remembered.ExpiresAt.After(session.ExpiresAt))

	require.NoError(t, f.auth.Logout(ctx, session.TokenID, session.ExpiresAt))
	revoked, err := f.auth.revoked.IsRevoked(ctx, session.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUsernameLengthCountsCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, strings.Repeat("ã", 40), "p", "p")
	require.NoError(t, err)
	assert.Equal(t, 40, len([]rune(user.Username)))

	_, err = f.auth.Register(ctx, strings.Repeat("ã", 64), "p", "p")
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, strings.Repeat("a", 65), "p", "p")
	de := requireCode(t, err, "VALIDATION_FAILED")
	assert.Contains(t, de.Details, "username")
}

func TestUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.List(ctx, f.agent)
	requireCode(t, err, "DENIED")

	added, err := f.users.Add(ctx, f.chief, AddUserInput{Username: "dora", Password: "p", Confirm: "p", IsSupervisor: true})
	require.NoError(t, err)
	assert.True(t, added.IsSupervisor)

	list, err := f.users.List(ctx, f.chief)
	require.NoError(t, err)
	assert.Len(t, list, 4)

	// unchanged username skips the uniqueness check; blank password keeps the hash
	before := added.PasswordHash
	edited, err := f.users.Edit(ctx, f.chief, added.ID, EditUserInput{Username: "dora"})
	require.NoError(t, err)
	assert.Equal(t, before, edited.PasswordHash)

	_, err = f.users.Edit(ctx, f.chief, added.ID, EditUserInput{Username: "ana"})
	de := requireCode(t, err, "VALIDATION_FAILED")
	assert.Equal(t, MsgUsernameTaken, de.Details["username"])

	edited, err = f.users.Edit(ctx, f.chief, added.ID, EditUserInput{Username: "dora2", Password: "new", Confirm: "new"})
	require.NoError(t, err)
	assert.NotEqual(t, before, edited.PasswordHash)
	_, err = f.auth.Login(ctx, "dora2", "new", false)
	assert.NoError(t, err)

	toggled, err := f.users.ToggleSupervisor(ctx, f.chief, f.agent.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsSupervisor)

	_, err = f.users.ToggleSupervisor(ctx, f.chief, f.chief.ID)
	de = requireCode(t, err, "DENIED")
	assert.Equal(t, auth.MsgCannotDemoteSelf, de.Message)

	_, err = f.users.Delete(ctx, f.chief, f.chief.ID)
	de = requireCode(t, err, "DENIED")
	assert.Equal(t, auth.MsgCannotDeleteSelf, de.Message)

	_, err = f.users.Get(ctx, f.chief, 777)
	requireCode(t, err, "NOT_FOUND")
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owned, err := f.interactions.Create(ctx, f.agent, sampleInput())
	require.NoError(t, err)
	foreign, err := f.interactions.Create(ctx, f.other, sampleInput())
	require.NoError(t, err)
	input := sampleInput()
	input.Status = domain.StatusInProgress
	_, err = f.interactions.Update(ctx, f.chief, foreign.ID, input)
	require.NoError(t, err)

	_, err = f.users.Delete(ctx, f.chief, f.agent.ID)
	require.NoError(t, err)

	_, err = f.interactions.Get(ctx, f.chief, owned.ID)
	requireCode(t, err, "NOT_FOUND")
	assert.Empty(t, f.history(t, owned.ID))

	_, err = f.users.Delete(ctx, f.agent, f.other.ID)
	requireCode(t, err, "DENIED")

	_, err = f.users.Delete(ctx, f.chief, f.other.ID)
	require.NoError(t, err)
	assert.Equal(t, events.EventUserDeleted, f.events[len(f.events)-1].Type)
}

func TestClientRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.clients.Create(ctx, " Joao ", "5511888880000")
	require.NoError(t, err)
	assert.Equal(t, "Joao", client.Name)

	_, err = f.clients.Create(ctx, "Other", "5511888880000")
	de := requireCode(t, err, "CONFLICT")
	assert.Equal(t, MsgPhoneTaken, de.Message)
	assert.Equal(t, apperrors.FlashDanger, de.FlashLevel)

	_, err = f.clients.Create(ctx, "", "")
	requireCode(t, err, "VALIDATION_FAILED")

	got, err := f.clients.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.Phone, got.Phone)
	_, err = f.clients.Get(ctx, 31337)
	requireCode(t, err, "NOT_FOUND")
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	create := func(actor domain.Actor, category domain.InteractionCategory, status domain.InteractionStatus) {
		input := sampleInput()
		input.Category = category
		input.Status = status
		_, err := f.interactions.Create(ctx, actor, input)
		require.NoError(t, err)
	}
	create(f.agent, domain.CategorySupport, domain.StatusOpen)
	create(f.agent, domain.CategorySupport, domain.StatusResolved)
	create(f.other, domain.CategoryTechnicalQuestion, domain.StatusOpen)
	create(f.other, domain.CategoryTechnicalQuestion, domain.StatusPending)
	create(f.chief, domain.CategorySupport, domain.StatusOpen)

	dash, err := f.reports.Dashboard(ctx, f.chief, f.clock.now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), dash.Total)
	assert.Equal(t, []string{"Aberto", "Pendente", "Resolvido", "Em Andamento"}, dash.StatusChart.Labels)
	assert.Equal(t, []int64{3, 1, 1, 0}, dash.StatusChart.Values)

	empty, err := f.reports.Dashboard(ctx, f.chief, f.clock.now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Len(t, empty.StatusCounts, len(domain.Statuses))
	assert.Zero(t, empty.Total)

	reports, err := f.reports.Reports(ctx, f.chief)
	require.NoError(t, err)
	assert.Equal(t, []domain.GroupCount{{Label: "Suporte", Count: 3}, {Label: "Dúvida Técnica", Count: 2}}, reports.CategoryCounts)
	// supervisors are excluded; ties break on the label
	assert.Equal(t, []domain.GroupCount{{Label: "ana", Count: 2}, {Label: "beto", Count: 2}}, reports.AgentCounts)
	assert.Equal(t, reports.AgentChart.Labels, []string{"ana", "beto"})

	stats, err := f.reports.UserStats(ctx, f.chief, f.other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Len(t, stats.Interactions, 2)
	assert.Len(t, stats.StatusCounts, 4)
	assert.Equal(t, []domain.GroupCount{{Label: "Dúvida Técnica", Count: 2}}, stats.CategoryCounts)

	_, err = f.reports.Reports(ctx, f.agent)
	requireCode(t, err, "DENIED")
	_, err = f.reports.UserStats(ctx, f.chief, 9999)
	requireCode(t, err, "NOT_FOUND")
}

func TestNewChartDataAligns(t *testing.T) {
	chart := NewChartData([]domain.GroupCount{{Label: "a", Count: 2}, {Label: "b", Count: 1}})
	assert.Equal(t, []string{"a", "b"}, chart.Labels)
	assert.Equal(t, []int64{2, 1}, chart.Values)

	empty := NewChartData(nil)
	assert.NotNil(t, empty.Labels)
	assert.Empty(t, empty.Values)
}
