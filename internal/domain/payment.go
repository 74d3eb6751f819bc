package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentPurpose is carried on the payment from creation so verification
// branches on a typed value rather than a free-text purpose string.
type PaymentPurpose string

const (
	PurposeContribution PaymentPurpose = "contribution"
	PurposeDue          PaymentPurpose = "due"
	PurposeExpenseShare PaymentPurpose = "expense_share"
	PurposeLoanRepay    PaymentPurpose = "loan_repayment"
)

type PaymentStatus string

const (
	PaymentPendingVerify PaymentStatus = "pending_verification"
	PaymentVerified      PaymentStatus = "verified"
	PaymentRejected      PaymentStatus = "rejected"
)

type Payment struct {
	ID      uuid.UUID
	PayerID uuid.UUID
	GroupID uuid.UUID

	Amount      decimal.Decimal
	Method      string
	ReferenceID string  // external transaction reference, e.g. GCash ref no
	ProofURL    *string // opaque handle from the proof storage collaborator

	Purpose PaymentPurpose
	LoanID  *uuid.UUID // set only for loan repayment payments

	Status     PaymentStatus
	VerifierID *uuid.UUID
	VerifiedAt *time.Time
	Notes      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Allocation links a payment to the obligation it pays down. The sum of a
// payment's allocations always equals the payment amount.
type Allocation struct {
	ID           uuid.UUID
	PaymentID    uuid.UUID
	ObligationID uuid.UUID
	Amount       decimal.Decimal

	CreatedAt time.Time
}
