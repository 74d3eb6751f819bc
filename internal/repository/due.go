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

type DueRepository struct {
	db *sql.DB
}

func NewDueRepository(db *sql.DB) *DueRepository {
	return &DueRepository{db: db}
}

func (r *DueRepository) Create(ctx context.Context, d *domain.Due) error {
	query := `
		INSERT INTO dues (id, group_id, name, amount, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q(ctx, r.db).ExecContext(ctx, query, d.ID, d.GroupID, d.Name, d.Amount, d.DueDate, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert due: %w", err)
	}
	return nil
}

func (r *DueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Due, error) {
	query := `SELECT id, group_id, name, amount, due_date, created_at FROM dues WHERE id = $1`
	var d domain.Due
	err := q(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&d.ID, &d.GroupID, &d.Name, &d.Amount, &d.DueDate, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("due not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan due: %w", err)
	}
	return &d, nil
}

// ListOpenByGroup returns dues whose deadline has not passed. New members get
// an obligation for each of these when they join.
func (r *DueRepository) ListOpenByGroup(ctx context.Context, groupID uuid.UUID, asOf time.Time) ([]domain.Due, error) {
	query := `SELECT id, group_id, name, amount, due_date, created_at FROM dues WHERE group_id = $1 AND due_date >= $2 ORDER BY due_date`
	rows, err := q(ctx, r.db).QueryContext(ctx, query, groupID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list open dues: %w", err)
	}
	defer rows.Close()

	var out []domain.Due
	for rows.Next() {
		var d domain.Due
		if err := rows.Scan(&d.ID, &d.GroupID, &d.Name, &d.Amount, &d.DueDate, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan due: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
