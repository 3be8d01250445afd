package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/interaction-tracker/internal/domain"
)

// InteractionHistoryRepository stores audit entries.
type InteractionHistoryRepository interface {
	Create(ctx context.Context, history *domain.InteractionHistory) error
	ListByInteraction(ctx context.Context, interactionID int64) ([]domain.InteractionHistory, error)
}

type interactionHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewInteractionHistoryRepository builds repository.
func NewInteractionHistoryRepository(pool *pgxpool.Pool) InteractionHistoryRepository {
	return &interactionHistoryRepository{pool: pool}
}

func (r *interactionHistoryRepository) Create(ctx context.Context, history *domain.InteractionHistory) error {
	const query = `
        INSERT INTO interaction_history (interaction_id, user_id, field_changed, old_value, new_value, timestamp)
        VALUES ($1,$2,$3,$4,$5,COALESCE($6, NOW()))
        RETURNING id, timestamp`
	var at *time.Time
	if !history.Timestamp.IsZero() {
		at = &history.Timestamp
	}
	return conn(ctx, r.pool).QueryRow(ctx, query,
		history.InteractionID,
		history.UserID,
		history.FieldChanged,
		history.OldValue,
		history.NewValue,
		at,
	).Scan(&history.ID, &history.Timestamp)
}

func (r *interactionHistoryRepository) ListByInteraction(ctx context.Context, interactionID int64) ([]domain.InteractionHistory, error) {
	const query = `
        SELECT h.id, h.interaction_id, h.user_id, COALESCE(u.username, ''), h.timestamp,
               h.field_changed, h.old_value, h.new_value
        FROM interaction_history h
        LEFT JOIN users u ON u.id = h.user_id
        WHERE h.interaction_id=$1
        ORDER BY h.timestamp ASC, h.id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, interactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InteractionHistory
	for rows.Next() {
		var history domain.InteractionHistory
		if err := rows.Scan(
			&history.ID,
			&history.InteractionID,
			&history.UserID,
			&history.Username,
			&history.Timestamp,
			&history.FieldChanged,
			&history.OldValue,
			&history.NewValue,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
