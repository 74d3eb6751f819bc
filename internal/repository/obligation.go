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

type ObligationRepository struct {
	db *sql.DB
}

func NewObligationRepository(db *sql.DB) *ObligationRepository {
	return &ObligationRepository{db: db}
}

const obligationColumns = `id, member_id, group_id, kind, source_id, base_amount_due, penalty, amount_paid, status, due_date, created_at, updated_at`

func scanObligation(row *sql.Row) (*domain.Obligation, error) {
	var o domain.Obligation
	var dueDate sql.NullTime
	err := row.Scan(
		&o.ID, &o.MemberID, &o.GroupID, &o.Kind, &o.SourceID,
		&o.BaseAmountDue, &o.Penalty, &o.AmountPaid, &o.Status,
		&dueDate, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("obligation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan obligation: %w", err)
	}
	if dueDate.Valid {
		o.DueDate = &dueDate.Time
	}
	return &o, nil
}

func (r *ObligationRepository) Create(ctx context.Context, o *domain.Obligation) error {
	query := `
		INSERT INTO obligations (id, member_id, group_id, kind, source_id, base_amount_due, penalty, amount_paid, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`
	var dueDate any
	if o.DueDate != nil {
		dueDate = *o.DueDate
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		o.ID, o.MemberID, o.GroupID, o.Kind, o.SourceID,
		o.BaseAmountDue, o.Penalty, o.AmountPaid, o.Status, dueDate, o.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("obligation already exists for this member and source")
	}
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	return nil
}

func (r *ObligationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1`
	return scanObligation(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the obligation row. Submission takes this lock before
// the duplicate-pending check so concurrent submissions for the same
// obligation serialize instead of both passing the check.
func (r *ObligationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1 FOR UPDATE`
	return scanObligation(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// FindContributionForUpdate resolves a member's contribution obligation for a
// week row, locked for the rest of the transaction.
func (r *ObligationRepository) FindContributionForUpdate(ctx context.Context, memberID, weekID uuid.UUID) (*domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE member_id = $1 AND source_id = $2 AND kind = $3 FOR UPDATE`
	return scanObligation(q(ctx, r.db).QueryRowContext(ctx, query, memberID, weekID, domain.KindContribution))
}

// Save persists mutable fields after a status or amount change.
func (r *ObligationRepository) Save(ctx context.Context, o *domain.Obligation) error {
	query := `
		UPDATE obligations
		SET base_amount_due = $2, penalty = $3, amount_paid = $4, status = $5, due_date = $6, updated_at = $7
		WHERE id = $1
	`
	var dueDate any
	if o.DueDate != nil {
		dueDate = *o.DueDate
	}
	res, err := q(ctx, r.db).ExecContext(ctx, query,
		o.ID, o.BaseAmountDue, o.Penalty, o.AmountPaid, o.Status, dueDate, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("obligation not found")
	}
	return nil
}

// MarkOverdue flips past-due untouched obligations to overdue and attaches
// the week's late penalty to past-due contributions. Idempotent and safe to
// run on every read: it never touches pending, partially paid, or settled
// rows, and a penalty is attached at most once.
func (r *ObligationRepository) MarkOverdue(ctx context.Context, groupID uuid.UUID, asOf time.Time) error {
	penaltyQuery := `
		UPDATE obligations o SET penalty = w.penalty, updated_at = $2
		FROM contribution_weeks w
		WHERE o.source_id = w.id AND o.kind = $3 AND o.group_id = $1
			AND o.status IN ($4, $5) AND o.amount_paid = 0 AND o.penalty = 0
			AND w.penalty > 0 AND o.due_date IS NOT NULL AND o.due_date < $2
	`
	if _, err := q(ctx, r.db).ExecContext(ctx, penaltyQuery,
		groupID, asOf, domain.KindContribution, domain.ObligationUnpaid, domain.ObligationOverdue); err != nil {
		return fmt.Errorf("attach late penalties: %w", err)
	}

	query := `
		UPDATE obligations SET status = $3, updated_at = $2
		WHERE group_id = $1 AND status = $4 AND amount_paid = 0 AND due_date IS NOT NULL AND due_date < $2
	`
	if _, err := q(ctx, r.db).ExecContext(ctx, query, groupID, asOf, domain.ObligationOverdue, domain.ObligationUnpaid); err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}
	return nil
}

// RevertOverdue is the inverse pass for due dates edited forward.
func (r *ObligationRepository) RevertOverdue(ctx context.Context, groupID uuid.UUID, asOf time.Time) error {
	query := `
		UPDATE obligations SET status = $3, updated_at = $2
		WHERE group_id = $1 AND status = $4 AND (due_date IS NULL OR due_date >= $2)
	`
	if _, err := q(ctx, r.db).ExecContext(ctx, query, groupID, asOf, domain.ObligationUnpaid, domain.ObligationOverdue); err != nil {
		return fmt.Errorf("revert overdue: %w", err)
	}
	return nil
}

func (r *ObligationRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE member_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, memberID)
}

// ListForExpenseForUpdate locks and returns every share obligation of a
// distributed expense, for share recomputation.
func (r *ObligationRepository) ListForExpenseForUpdate(ctx context.Context, expenseID uuid.UUID) ([]domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE source_id = $1 AND kind = '` + string(domain.KindExpenseShare) + `' ORDER BY created_at FOR UPDATE`
	return r.list(ctx, query, expenseID)
}

func (r *ObligationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Obligation, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var out []domain.Obligation
	for rows.Next() {
		var o domain.Obligation
		var dueDate sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.MemberID, &o.GroupID, &o.Kind, &o.SourceID,
			&o.BaseAmountDue, &o.Penalty, &o.AmountPaid, &o.Status,
			&dueDate, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		if dueDate.Valid {
			o.DueDate = &dueDate.Time
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteWithAllocations is the administrative reset: allocations cascade
// first, then the obligation row itself.
func (r *ObligationRepository) DeleteWithAllocations(ctx context.Context, id uuid.UUID) error {
	if _, err := q(ctx, r.db).ExecContext(ctx, `DELETE FROM allocations WHERE obligation_id = $1`, id); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	res, err := q(ctx, r.db).ExecContext(ctx, `DELETE FROM obligations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("obligation not found")
	}
	return nil
}
