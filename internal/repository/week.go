package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

type WeekRepository struct {
	db *sql.DB
}

func NewWeekRepository(db *sql.DB) *WeekRepository {
	return &WeekRepository{db: db}
}

const weekColumns = `id, group_id, start_date, base_amount, penalty, due_date, created_at`

func (r *WeekRepository) Create(ctx context.Context, w *domain.ContributionWeek) error {
	query := `
		INSERT INTO contribution_weeks (id, group_id, start_date, base_amount, penalty, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		w.ID, w.GroupID, w.StartDate, w.BaseAmount, w.Penalty, w.DueDate, w.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("week starting %s already exists", w.StartDate.Format("2006-01-02"))
	}
	if err != nil {
		return fmt.Errorf("insert contribution week: %w", err)
	}
	return nil
}

func (r *WeekRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ContributionWeek, error) {
	query := `SELECT ` + weekColumns + ` FROM contribution_weeks WHERE id = $1`
	return r.scan(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// FindByStart resolves a week by its start date. This lookup is the only
// notion of "which week" in the system.
func (r *WeekRepository) FindByStart(ctx context.Context, groupID uuid.UUID, start time.Time) (*domain.ContributionWeek, error) {
	query := `SELECT ` + weekColumns + ` FROM contribution_weeks WHERE group_id = $1 AND start_date = $2`
	return r.scan(q(ctx, r.db).QueryRowContext(ctx, query, groupID, start))
}

func (r *WeekRepository) scan(row *sql.Row) (*domain.ContributionWeek, error) {
	var w domain.ContributionWeek
	err := row.Scan(&w.ID, &w.GroupID, &w.StartDate, &w.BaseAmount, &w.Penalty, &w.DueDate, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("contribution week not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan contribution week: %w", err)
	}
	return &w, nil
}
