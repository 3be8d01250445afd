package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/interaction-tracker/internal/domain"
)

// InteractionFilter captures listing parameters. Nil fields are not applied.
// StartFrom is inclusive, StartTo exclusive.
type InteractionFilter struct {
	UserID    *int64
	StartFrom *time.Time
	StartTo   *time.Time
}

// InteractionRepository encapsulates interaction persistence.
type InteractionRepository interface {
	Create(ctx context.Context, interaction *domain.Interaction) error
	Update(ctx context.Context, interaction *domain.Interaction) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Interaction, error)
	// GetForUpdate reads the row and locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Interaction, error)
	List(ctx context.Context, filter InteractionFilter) ([]domain.Interaction, error)
}

type interactionRepository struct {
	pool *pgxpool.Pool
}

// NewInteractionRepository instantiates repository.
func NewInteractionRepository(pool *pgxpool.Pool) InteractionRepository {
	return &interactionRepository{pool: pool}
}

const interactionSelect = `
        SELECT i.id, i.user_id, i.client_id, c.name, c.phone, u.username,
               i.channel, i.category, i.description, i.status, i.had_remote_session,
               i.start_time, i.end_time
        FROM interactions i
        JOIN clients c ON c.id = i.client_id
        JOIN users u ON u.id = i.user_id`

func (r *interactionRepository) Create(ctx context.Context, interaction *domain.Interaction) error {
	const query = `
        INSERT INTO interactions (user_id, client_id, channel, category, description, status, had_remote_session, start_time, end_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,COALESCE($8, NOW()),$9)
        RETURNING id, start_time`
	var startTime *time.Time
	if !interaction.StartTime.IsZero() {
		startTime = &interaction.StartTime
	}
	return conn(ctx, r.pool).QueryRow(ctx, query,
		interaction.UserID,
		interaction.ClientID,
		interaction.Channel,
		interaction.Category,
		interaction.Description,
		interaction.Status,
		interaction.HadRemoteSession,
		startTime,
		interaction.EndTime,
	).Scan(&interaction.ID, &interaction.StartTime)
}

func (r *interactionRepository) Update(ctx context.Context, interaction *domain.Interaction) error {
	const query = `
        UPDATE interactions SET client_id=$1, channel=$2, category=$3, description=$4,
            status=$5, had_remote_session=$6, end_time=$7
        WHERE id=$8`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		interaction.ClientID,
		interaction.Channel,
		interaction.Category,
		interaction.Description,
		interaction.Status,
		interaction.HadRemoteSession,
		interaction.EndTime,
		interaction.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the interaction; its history cascades.
func (r *interactionRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM interactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *interactionRepository) GetByID(ctx context.Context, id int64) (*domain.Interaction, error) {
	return r.getOne(ctx, interactionSelect+` WHERE i.id=$1`, id)
}

func (r *interactionRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Interaction, error) {
	return r.getOne(ctx, interactionSelect+` WHERE i.id=$1 FOR UPDATE OF i`, id)
}

func (r *interactionRepository) getOne(ctx context.Context, query string, id int64) (*domain.Interaction, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result, err := scanInteractions(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &result[0], nil
}

func (r *interactionRepository) List(ctx context.Context, filter InteractionFilter) ([]domain.Interaction, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("i.user_id=$%d", len(args)))
	}
	if filter.StartFrom != nil {
		args = append(args, *filter.StartFrom)
		clauses = append(clauses, fmt.Sprintf("i.start_time >= $%d", len(args)))
	}
	if filter.StartTo != nil {
		args = append(args, *filter.StartTo)
		clauses = append(clauses, fmt.Sprintf("i.start_time < $%d", len(args)))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY i.start_time DESC, i.id DESC`,
		interactionSelect, strings.Join(clauses, " AND "))

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInteractions(rows)
}

func scanInteractions(rows pgx.Rows) ([]domain.Interaction, error) {
	var result []domain.Interaction
	for rows.Next() {
		var interaction domain.Interaction
		if err := rows.Scan(
			&interaction.ID,
			&interaction.UserID,
			&interaction.ClientID,
			&interaction.ClientName,
			&interaction.ClientPhone,
			&interaction.Username,
			&interaction.Channel,
			&interaction.Category,
			&interaction.Description,
			&interaction.Status,
			&interaction.HadRemoteSession,
			&interaction.StartTime,
			&interaction.EndTime,
		); err != nil {
			return nil, err
		}
		result = append(result, interaction)
	}
	return result, rows.Err()
}
