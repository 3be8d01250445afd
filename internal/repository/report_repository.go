package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/interaction-tracker/internal/domain"
)

// ReportFilter scopes aggregate queries. StartFrom is inclusive, StartTo exclusive.
type ReportFilter struct {
	UserID    *int64
	StartFrom *time.Time
	StartTo   *time.Time
}

// ReportRepository runs read-only aggregates over the ledger. Results are
// ordered by count descending, then label ascending.
type ReportRepository interface {
	CountByStatus(ctx context.Context, filter ReportFilter) ([]domain.GroupCount, error)
	CountByCategory(ctx context.Context, filter ReportFilter) ([]domain.GroupCount, error)
	// CountByAgent counts interactions per non-supervisor username.
	CountByAgent(ctx context.Context, filter ReportFilter) ([]domain.GroupCount, error)
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository builds repository.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

func (r *reportRepository) CountByStatus(ctx context.Context, filter ReportFilter) ([]domain.GroupCount, error) {
	return r.groupBy(ctx, "i.status", false, filter)
}

func (r *reportRepository) CountByCategory(ctx context.Context, filter ReportFilter) ([]domain.GroupCount, error) {
	return r.groupBy(ctx, "i.category", false, filter)
}

func (r *reportRepository) CountByAgent(ctx context.Context, filter ReportFilter) ([]domain.GroupCount, error) {
	return r.groupBy(ctx, "u.username", true, filter)
}

func (r *reportRepository) groupBy(ctx context.Context, column string, agentsOnly bool, filter ReportFilter) ([]domain.GroupCount, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if agentsOnly {
		clauses = append(clauses, "u.is_supervisor = FALSE")
	}
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

	query := fmt.Sprintf(`
        SELECT %[1]s AS label, COUNT(*) AS total
        FROM interactions i
        JOIN users u ON u.id = i.user_id
        WHERE %[2]s
        GROUP BY %[1]s
        ORDER BY total DESC, label ASC`, column, strings.Join(clauses, " AND "))

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GroupCount
	for rows.Next() {
		var group domain.GroupCount
		if err := rows.Scan(&group.Label, &group.Count); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}
