package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = `id, group_id, description, amount, is_distributed, per_member_share, created_by, created_at, updated_at`

func scanExpense(row *sql.Row) (*domain.Expense, error) {
	var e domain.Expense
	var share decimal.NullDecimal
	err := row.Scan(
		&e.ID, &e.GroupID, &e.Description, &e.Amount,
		&e.IsDistributed, &share, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("expense not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	if share.Valid {
		e.PerMemberShare = &share.Decimal
	}
	return &e, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, e *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, group_id, description, amount, is_distributed, per_member_share, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	var share any
	if e.PerMemberShare != nil {
		share = *e.PerMemberShare
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		e.ID, e.GroupID, e.Description, e.Amount, e.IsDistributed, share, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	return scanExpense(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the expense row for distribution and recomputation.
func (r *ExpenseRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 FOR UPDATE`
	return scanExpense(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *ExpenseRepository) SetDistribution(ctx context.Context, id uuid.UUID, share *decimal.Decimal, distributed bool, at time.Time) error {
	query := `UPDATE expenses SET is_distributed = $2, per_member_share = $3, updated_at = $4 WHERE id = $1`
	var s any
	if share != nil {
		s = *share
	}
	res, err := q(ctx, r.db).ExecContext(ctx, query, id, distributed, s, at)
	if err != nil {
		return fmt.Errorf("set expense distribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("expense not found")
	}
	return nil
}

func (r *ExpenseRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	query := `UPDATE expenses SET amount = $2, updated_at = $3 WHERE id = $1`
	res, err := q(ctx, r.db).ExecContext(ctx, query, id, amount, at)
	if err != nil {
		return fmt.Errorf("update expense amount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("expense not found")
	}
	return nil
}

// SumByGroup totals every expense of the group for the balance formula,
// distributed or not.
func (r *ExpenseRepository) SumByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE group_id = $1`
	var sum decimal.Decimal
	if err := q(ctx, r.db).QueryRowContext(ctx, query, groupID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}
