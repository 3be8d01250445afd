package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

// ChartData is an aggregate flattened into aligned label and value series.
type ChartData struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// NewChartData converts ordered buckets into chart series.
func NewChartData(groups []domain.GroupCount) ChartData {
	chart := ChartData{
		Labels: make([]string, 0, len(groups)),
		Values: make([]int64, 0, len(groups)),
	}
	for _, g := range groups {
		chart.Labels = append(chart.Labels, g.Label)
		chart.Values = append(chart.Values, g.Count)
	}
	return chart
}

// Dashboard holds the status statistics of one day.
type Dashboard struct {
	Day          time.Time
	Total        int64
	StatusCounts []domain.GroupCount
	StatusChart  ChartData
}

// Reports holds the all-time category and agent aggregates.
type Reports struct {
	CategoryCounts []domain.GroupCount
	CategoryChart  ChartData
	AgentCounts    []domain.GroupCount
	AgentChart     ChartData
}

// UserStats summarises the interactions of one user.
type UserStats struct {
	User           *domain.User
	Total          int64
	StatusCounts   []domain.GroupCount
	CategoryCounts []domain.GroupCount
	StatusChart    ChartData
	CategoryChart  ChartData
	Interactions   []domain.Interaction
}

// ReportService derives read-only statistics for supervisors.
type ReportService struct {
	reports      repository.ReportRepository
	users        repository.UserRepository
	interactions repository.InteractionRepository
	policy       auth.Policy
	location     *time.Location
}

// ReportDependencies wires the service.
type ReportDependencies struct {
	Reports      repository.ReportRepository
	Users        repository.UserRepository
	Interactions repository.InteractionRepository
	Policy       auth.Policy
	Location     *time.Location
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{
		reports:      deps.Reports,
		users:        deps.Users,
		interactions: deps.Interactions,
		policy:       deps.Policy,
		location:     loc,
	}
}

// Dashboard counts the day's interactions per status. Every status is present.
func (s *ReportService) Dashboard(ctx context.Context, actor domain.Actor, day time.Time) (*Dashboard, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	start, end := DayWindow(day, s.location)
	counts, err := s.reports.CountByStatus(ctx, repository.ReportFilter{StartFrom: &start, StartTo: &end})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts = withAllStatuses(counts)
	return &Dashboard{
		Day:          start,
		Total:        domain.SumGroupCounts(counts),
		StatusCounts: counts,
		StatusChart:  NewChartData(counts),
	}, nil
}

// Reports returns all-time counts per category and per agent.
func (s *ReportService) Reports(ctx context.Context, actor domain.Actor) (*Reports, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	categories, err := s.reports.CountByCategory(ctx, repository.ReportFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	agents, err := s.reports.CountByAgent(ctx, repository.ReportFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	domain.SortGroupCounts(categories)
	domain.SortGroupCounts(agents)
	return &Reports{
		CategoryCounts: categories,
		CategoryChart:  NewChartData(categories),
		AgentCounts:    agents,
		AgentChart:     NewChartData(agents),
	}, nil
}

// UserStats returns the totals of one user's interactions.
func (s *ReportService) UserStats(ctx context.Context, actor domain.Actor, userID int64) (*UserStats, error) {
	if err := s.policy.RequireSupervisor(actor).Err(); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	filter := repository.ReportFilter{UserID: &user.ID}
	statuses, err := s.reports.CountByStatus(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	categories, err := s.reports.CountByCategory(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	interactions, err := s.interactions.List(ctx, repository.InteractionFilter{UserID: &user.ID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	statuses = withAllStatuses(statuses)
	domain.SortGroupCounts(categories)
	return &UserStats{
		User:           user,
		Total:          domain.SumGroupCounts(statuses),
		StatusCounts:   statuses,
		CategoryCounts: categories,
		StatusChart:    NewChartData(statuses),
		CategoryChart:  NewChartData(categories),
		Interactions:   interactions,
	}, nil
}

// withAllStatuses adds zero buckets for missing statuses and re-sorts.
func withAllStatuses(counts []domain.GroupCount) []domain.GroupCount {
	seen := make(map[string]bool, len(counts))
	for _, c := range counts {
		seen[c.Label] = true
	}
	out := append([]domain.GroupCount{}, counts...)
	for _, status := range domain.Statuses {
		if !seen[string(status)] {
			out = append(out, domain.GroupCount{Label: string(status)})
		}
	}
	domain.SortGroupCounts(out)
	return out
}
