package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ObligationKind string

const (
	KindContribution ObligationKind = "contribution"
	KindDue          ObligationKind = "due"
	KindExpenseShare ObligationKind = "expense_share"
)

type ObligationStatus string

const (
	ObligationUnpaid        ObligationStatus = "unpaid"
	ObligationPendingVerify ObligationStatus = "pending_verification"
	ObligationPartiallyPaid ObligationStatus = "partially_paid"
	ObligationPaid          ObligationStatus = "paid"
	ObligationOverdue       ObligationStatus = "overdue"
)

// Obligation is a single amount a member owes: a weekly contribution, an
// assigned due, or a share of a distributed expense. SourceID points at the
// parent row (contribution week, due, or expense) that created it.
type Obligation struct {
	ID       uuid.UUID
	MemberID uuid.UUID
	GroupID  uuid.UUID
	Kind     ObligationKind
	SourceID uuid.UUID

	BaseAmountDue decimal.Decimal
	Penalty       decimal.Decimal // contributions only, zero otherwise
	AmountPaid    decimal.Decimal
	Status        ObligationStatus
	DueDate       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalDue is the full amount owed including penalty.
func (o *Obligation) TotalDue() decimal.Decimal {
	return o.BaseAmountDue.Add(o.Penalty)
}

// Remaining is the amount still owed.
func (o *Obligation) Remaining() decimal.Decimal {
	return o.TotalDue().Sub(o.AmountPaid)
}

// Apply adds a verified payment amount and recomputes the status. Amounts are
// only ever applied at verification time; a pending payment never touches
// AmountPaid.
func (o *Obligation) Apply(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Invalidf("applied amount must be positive")
	}
	next := o.AmountPaid.Add(amount)
	if next.GreaterThan(o.TotalDue()) {
		return Conflictf("over-allocation: %s exceeds remaining %s", amount, o.Remaining())
	}
	o.AmountPaid = next
	o.Status = o.deriveStatus()
	return nil
}

// RevertPending recomputes the status after a pending payment is rejected.
// The rejected payment was never applied, so this touches status only.
func (o *Obligation) RevertPending() {
	o.Status = o.deriveStatus()
}

func (o *Obligation) deriveStatus() ObligationStatus {
	switch {
	case o.AmountPaid.GreaterThanOrEqual(o.TotalDue()):
		return ObligationPaid
	case o.AmountPaid.GreaterThan(decimal.Zero):
		return ObligationPartiallyPaid
	default:
		return ObligationUnpaid
	}
}

// Rebase replaces the base amount due after its source changed (an expense
// amount edit). The base never drops below what was already paid, and a
// pending verification keeps its status so the in-flight payment resolves
// normally.
func (o *Obligation) Rebase(newBase decimal.Decimal) {
	if newBase.LessThan(o.AmountPaid) {
		newBase = o.AmountPaid
	}
	o.BaseAmountDue = newBase
	if o.Status != ObligationPendingVerify {
		o.Status = o.deriveStatus()
	}
}

// Overdue reports whether the obligation should be flagged overdue as of now.
// A partially paid obligation is never overdue, and a pending or settled one
// must not be clobbered.
func (o *Obligation) Overdue(now time.Time) bool {
	return o.Status == ObligationUnpaid &&
		o.DueDate != nil && o.DueDate.Before(now) &&
		o.AmountPaid.IsZero()
}
