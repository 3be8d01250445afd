package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/interaction-tracker/internal/domain"
)

// ClientRepository stores the client registry.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository builds repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (name, phone) VALUES ($1, $2)
        RETURNING id, created_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query, client.Name, client.Phone).
		Scan(&client.ID, &client.CreatedAt)
	return mapWriteError(err)
}

func (r *clientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	return r.fetchSingle(ctx, `SELECT id, name, phone, created_at FROM clients WHERE id=$1`, id)
}

func (r *clientRepository) GetByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	return r.fetchSingle(ctx, `SELECT id, name, phone, created_at FROM clients WHERE phone=$1`, phone)
}

func (r *clientRepository) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, name, phone, created_at FROM clients ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Client
	for rows.Next() {
		var client domain.Client
		if err := rows.Scan(&client.ID, &client.Name, &client.Phone, &client.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, client)
	}
	return result, rows.Err()
}

func (r *clientRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Client, error) {
	var client domain.Client
	if err := conn(ctx, r.pool).QueryRow(ctx, query, arg).
		Scan(&client.ID, &client.Name, &client.Phone, &client.CreatedAt); err != nil {
		return nil, err
	}
	return &client, nil
}
