package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanType string

const (
	LoanIntraGroup LoanType = "intra_group"
	LoanInterGroup LoanType = "inter_group"
)

type LoanStatus string

const (
	LoanRequested       LoanStatus = "requested"
	LoanApproved        LoanStatus = "approved"
	LoanRejected        LoanStatus = "rejected"
	LoanDisbursed       LoanStatus = "disbursed"
	LoanPartiallyRepaid LoanStatus = "partially_repaid"
	LoanFullyRepaid     LoanStatus = "fully_repaid"
)

// Terminal reports whether the status ends the lifecycle. A member (or group
// pair) may only hold one non-terminal loan at a time.
func (s LoanStatus) Terminal() bool {
	return s == LoanRejected || s == LoanFullyRepaid
}

// Loan rows are never deleted; the full lifecycle stays on the row as an
// audit trail.
type Loan struct {
	ID   uuid.UUID
	Type LoanType

	RequesterID      uuid.UUID
	RequestingGroup  uuid.UUID
	ProvidingGroup   uuid.UUID // equals RequestingGroup for intra-group loans
	AmountRequested  decimal.Decimal
	AmountApproved   *decimal.Decimal
	FeeApplied       decimal.Decimal
	TotalRepaid      decimal.Decimal
	Status           LoanStatus
	RejectionReason  *string
	DisburseProofURL *string
	DisburseRef      *string
	DueDate          time.Time

	RequestedAt time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	DisbursedAt *time.Time
	UpdatedAt   time.Time
}

// Outstanding is the principal still owed. Zero before approval.
func (l *Loan) Outstanding() decimal.Decimal {
	if l.AmountApproved == nil {
		return decimal.Zero
	}
	out := l.AmountApproved.Sub(l.TotalRepaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// ApplyRepayment records a repayment amount and derives the new status.
// Over-payment is accepted; the status simply caps at fully repaid.
func (l *Loan) ApplyRepayment(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Invalidf("repayment amount must be positive")
	}
	if l.Status != LoanDisbursed && l.Status != LoanPartiallyRepaid {
		return Conflictf("loan %s is %s, repayments require a disbursed loan", l.ID, l.Status)
	}
	l.TotalRepaid = l.TotalRepaid.Add(amount)
	if l.AmountApproved != nil && l.TotalRepaid.GreaterThanOrEqual(*l.AmountApproved) {
		l.Status = LoanFullyRepaid
	} else {
		l.Status = LoanPartiallyRepaid
	}
	return nil
}

// LoanRepayment is append-only. PaymentID is nil for manual administrative
// entries recorded without a ledger payment.
type LoanRepayment struct {
	ID         uuid.UUID
	LoanID     uuid.UUID
	PaymentID  *uuid.UUID
	Amount     decimal.Decimal
	RecordedBy uuid.UUID
	CreatedAt  time.Time
}
