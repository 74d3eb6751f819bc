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

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, payer_id, group_id, amount, method, reference_id, proof_url, purpose, loan_id, status, verifier_id, verified_at, notes, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, payer_id, group_id, amount, method, reference_id, proof_url, purpose, loan_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	var loanID any
	if p.LoanID != nil {
		loanID = *p.LoanID
	}
	var proofURL any
	if p.ProofURL != nil {
		proofURL = *p.ProofURL
	}
	var notes any
	if p.Notes != nil {
		notes = *p.Notes
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		p.ID, p.PayerID, p.GroupID, p.Amount, p.Method, p.ReferenceID,
		proofURL, p.Purpose, loanID, p.Status, notes, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

func scanPayment(row *sql.Row) (*domain.Payment, error) {
	var p domain.Payment
	var proofURL, notes sql.NullString
	var loanID, verifierID uuid.NullUUID
	var verifiedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.PayerID, &p.GroupID, &p.Amount, &p.Method, &p.ReferenceID,
		&proofURL, &p.Purpose, &loanID, &p.Status, &verifierID, &verifiedAt,
		&notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("payment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	if proofURL.Valid {
		p.ProofURL = &proofURL.String
	}
	if notes.Valid {
		p.Notes = &notes.String
	}
	if loanID.Valid {
		p.LoanID = &loanID.UUID
	}
	if verifierID.Valid {
		p.VerifierID = &verifierID.UUID
	}
	if verifiedAt.Valid {
		p.VerifiedAt = &verifiedAt.Time
	}
	return &p, nil
}

func (r *PaymentRepository) CreateAllocation(ctx context.Context, a *domain.Allocation) error {
	query := `
		INSERT INTO allocations (id, payment_id, obligation_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q(ctx, r.db).ExecContext(ctx, query, a.ID, a.PaymentID, a.ObligationID, a.Amount, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Allocations(ctx context.Context, paymentID uuid.UUID) ([]domain.Allocation, error) {
	query := `SELECT id, payment_id, obligation_id, amount, created_at FROM allocations WHERE payment_id = $1 ORDER BY created_at`
	rows, err := q(ctx, r.db).QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []domain.Allocation
	for rows.Next() {
		var a domain.Allocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.ObligationID, &a.Amount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasActiveForObligation reports whether the member already has a pending or
// verified payment allocated to the obligation. Callers must hold the
// obligation row lock for the check-then-insert to be race-free.
func (r *PaymentRepository) HasActiveForObligation(ctx context.Context, memberID, obligationID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments p
			JOIN allocations a ON a.payment_id = p.id
			WHERE a.obligation_id = $1 AND p.payer_id = $2 AND p.status <> $3
		)
	`
	var exists bool
	if err := q(ctx, r.db).QueryRowContext(ctx, query, obligationID, memberID, domain.PaymentRejected).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active payment: %w", err)
	}
	return exists, nil
}

// MarkVerified resolves a pending payment to verified. The status predicate
// makes the write conditional: a second verifier sees zero rows affected and
// gets ok=false instead of double-applying funds.
func (r *PaymentRepository) MarkVerified(ctx context.Context, id, verifierID uuid.UUID, notes *string, at time.Time) (bool, error) {
	query := `
		UPDATE payments SET status = $3, verifier_id = $4, verified_at = $5, notes = COALESCE($6, notes), updated_at = $5
		WHERE id = $1 AND status = $2
	`
	return r.resolve(ctx, query, id, verifierID, notes, at, domain.PaymentVerified)
}

// MarkRejected resolves a pending payment to rejected, same conditional rule.
func (r *PaymentRepository) MarkRejected(ctx context.Context, id, verifierID uuid.UUID, notes *string, at time.Time) (bool, error) {
	query := `
		UPDATE payments SET status = $3, verifier_id = $4, verified_at = $5, notes = COALESCE($6, notes), updated_at = $5
		WHERE id = $1 AND status = $2
	`
	return r.resolve(ctx, query, id, verifierID, notes, at, domain.PaymentRejected)
}

func (r *PaymentRepository) resolve(ctx context.Context, query string, id, verifierID uuid.UUID, notes *string, at time.Time, to domain.PaymentStatus) (bool, error) {
	var n any
	if notes != nil {
		n = *notes
	}
	res, err := q(ctx, r.db).ExecContext(ctx, query, id, domain.PaymentPendingVerify, to, verifierID, at, n)
	if err != nil {
		return false, fmt.Errorf("resolve payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve payment: %w", err)
	}
	return affected == 1, nil
}

// SumVerifiedByGroup totals verified collections for the balance formula.
// Loan repayments are excluded here; they enter the balance through the
// outstanding-principal term instead, so they are never counted twice.
func (r *PaymentRepository) SumVerifiedByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE group_id = $1 AND status = $2 AND purpose <> $3
	`
	var sum decimal.Decimal
	if err := q(ctx, r.db).QueryRowContext(ctx, query, groupID, domain.PaymentVerified, domain.PurposeLoanRepay).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum verified payments: %w", err)
	}
	return sum, nil
}
