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

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanColumns = `id, type, requester_id, requesting_group, providing_group, amount_requested, amount_approved, fee_applied, total_repaid, status, rejection_reason, disburse_proof_url, disburse_ref, due_date, requested_at, approved_at, rejected_at, disbursed_at, updated_at`

func (r *LoanRepository) Create(ctx context.Context, l *domain.Loan) error {
	query := `
		INSERT INTO loans (id, type, requester_id, requesting_group, providing_group, amount_requested, fee_applied, total_repaid, status, due_date, requested_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		l.ID, l.Type, l.RequesterID, l.RequestingGroup, l.ProvidingGroup,
		l.AmountRequested, l.FeeApplied, l.TotalRepaid, l.Status, l.DueDate, l.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the loan row for status transitions.
func (r *LoanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	return scanLoan(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

func scanLoan(row *sql.Row) (*domain.Loan, error) {
	var l domain.Loan
	var amountApproved decimal.NullDecimal
	var reason, proofURL, ref sql.NullString
	var approvedAt, rejectedAt, disbursedAt sql.NullTime
	err := row.Scan(
		&l.ID, &l.Type, &l.RequesterID, &l.RequestingGroup, &l.ProvidingGroup,
		&l.AmountRequested, &amountApproved, &l.FeeApplied, &l.TotalRepaid,
		&l.Status, &reason, &proofURL, &ref, &l.DueDate,
		&l.RequestedAt, &approvedAt, &rejectedAt, &disbursedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("loan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan loan: %w", err)
	}
	if amountApproved.Valid {
		l.AmountApproved = &amountApproved.Decimal
	}
	if reason.Valid {
		l.RejectionReason = &reason.String
	}
	if proofURL.Valid {
		l.DisburseProofURL = &proofURL.String
	}
	if ref.Valid {
		l.DisburseRef = &ref.String
	}
	if approvedAt.Valid {
		l.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		l.RejectedAt = &rejectedAt.Time
	}
	if disbursedAt.Valid {
		l.DisbursedAt = &disbursedAt.Time
	}
	return &l, nil
}

// HasOpenForMember reports whether the member holds any non-terminal loan.
func (r *LoanRepository) HasOpenForMember(ctx context.Context, memberID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loans WHERE requester_id = $1 AND status NOT IN ($2, $3)
		)
	`
	var exists bool
	err := q(ctx, r.db).QueryRowContext(ctx, query, memberID, domain.LoanRejected, domain.LoanFullyRepaid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open loan: %w", err)
	}
	return exists, nil
}

// HasOpenBetweenGroups reports whether a non-terminal inter-group loan exists
// between the pair, in either direction.
func (r *LoanRepository) HasOpenBetweenGroups(ctx context.Context, a, b uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE type = $1 AND status NOT IN ($2, $3)
			  AND ((requesting_group = $4 AND providing_group = $5) OR (requesting_group = $5 AND providing_group = $4))
		)
	`
	var exists bool
	err := q(ctx, r.db).QueryRowContext(ctx, query,
		domain.LoanInterGroup, domain.LoanRejected, domain.LoanFullyRepaid, a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open inter-group loan: %w", err)
	}
	return exists, nil
}

// Approve is a conditional transition from requested.
func (r *LoanRepository) Approve(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	query := `
		UPDATE loans SET status = $3, amount_approved = $4, approved_at = $5, updated_at = $5
		WHERE id = $1 AND status = $2
	`
	return r.transition(ctx, query, id, domain.LoanRequested, domain.LoanApproved, amount, at)
}

// Reject is a conditional transition from requested.
func (r *LoanRepository) Reject(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE loans SET status = $3, rejection_reason = $4, rejected_at = $5, updated_at = $5
		WHERE id = $1 AND status = $2
	`
	return r.transition(ctx, query, id, domain.LoanRequested, domain.LoanRejected, reason, at)
}

// MarkDisbursed is a conditional transition from approved. proofURL stays nil
// when the upload collaborator failed; disbursement is never blocked on it.
func (r *LoanRepository) MarkDisbursed(ctx context.Context, id uuid.UUID, proofURL, externalRef *string, at time.Time) (bool, error) {
	query := `
		UPDATE loans SET status = $3, disburse_proof_url = $4, disburse_ref = $5, disbursed_at = $6, updated_at = $6
		WHERE id = $1 AND status = $2
	`
	var proof, ref any
	if proofURL != nil {
		proof = *proofURL
	}
	if externalRef != nil {
		ref = *externalRef
	}
	res, err := q(ctx, r.db).ExecContext(ctx, query, id, domain.LoanApproved, domain.LoanDisbursed, proof, ref, at)
	if err != nil {
		return false, fmt.Errorf("mark disbursed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark disbursed: %w", err)
	}
	return n == 1, nil
}

func (r *LoanRepository) transition(ctx context.Context, query string, id uuid.UUID, from, to domain.LoanStatus, extra any, at time.Time) (bool, error) {
	res, err := q(ctx, r.db).ExecContext(ctx, query, id, from, to, extra, at)
	if err != nil {
		return false, fmt.Errorf("loan transition to %s: %w", to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("loan transition to %s: %w", to, err)
	}
	return n == 1, nil
}

// SaveRepaymentState persists totals and status after ApplyRepayment.
func (r *LoanRepository) SaveRepaymentState(ctx context.Context, l *domain.Loan) error {
	query := `UPDATE loans SET total_repaid = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := q(ctx, r.db).ExecContext(ctx, query, l.ID, l.TotalRepaid, l.Status, time.Now())
	if err != nil {
		return fmt.Errorf("save loan repayment state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("loan not found")
	}
	return nil
}

func (r *LoanRepository) CreateRepayment(ctx context.Context, rp *domain.LoanRepayment) error {
	query := `
		INSERT INTO loan_repayments (id, loan_id, payment_id, amount, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var paymentID any
	if rp.PaymentID != nil {
		paymentID = *rp.PaymentID
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query, rp.ID, rp.LoanID, paymentID, rp.Amount, rp.RecordedBy, rp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert loan repayment: %w", err)
	}
	return nil
}

func (r *LoanRepository) ListRepayments(ctx context.Context, loanID uuid.UUID) ([]domain.LoanRepayment, error) {
	query := `SELECT id, loan_id, payment_id, amount, recorded_by, created_at FROM loan_repayments WHERE loan_id = $1 ORDER BY created_at`
	rows, err := q(ctx, r.db).QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("list loan repayments: %w", err)
	}
	defer rows.Close()

	var out []domain.LoanRepayment
	for rows.Next() {
		var rp domain.LoanRepayment
		var paymentID uuid.NullUUID
		if err := rows.Scan(&rp.ID, &rp.LoanID, &paymentID, &rp.Amount, &rp.RecordedBy, &rp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan loan repayment: %w", err)
		}
		if paymentID.Valid {
			rp.PaymentID = &paymentID.UUID
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

// ApprovedPrincipal sums approved-but-not-yet-disbursed commitments. Loan
// approval subtracts this from the available balance so back-to-back
// approvals cannot jointly overdraw a group before disbursement.
func (r *LoanRepository) ApprovedPrincipal(ctx context.Context, providingGroup uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount_approved), 0) FROM loans
		WHERE providing_group = $1 AND status = $2
	`
	var sum decimal.Decimal
	err := q(ctx, r.db).QueryRowContext(ctx, query, providingGroup, domain.LoanApproved).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum approved principal: %w", err)
	}
	return sum, nil
}

// OutstandingPrincipal sums what disbursed loans still owe the providing
// group. Over-repaid loans contribute zero, never a negative.
func (r *LoanRepository) OutstandingPrincipal(ctx context.Context, providingGroup uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(GREATEST(amount_approved - total_repaid, 0)), 0) FROM loans
		WHERE providing_group = $1 AND status IN ($2, $3)
	`
	var sum decimal.Decimal
	err := q(ctx, r.db).QueryRowContext(ctx, query, providingGroup, domain.LoanDisbursed, domain.LoanPartiallyRepaid).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum outstanding principal: %w", err)
	}
	return sum, nil
}
