package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a group cost split evenly across active members when
// distributed. Shares are a snapshot: membership changes after distribution
// do not add or remove shares for an already-distributed expense.
type Expense struct {
	ID             uuid.UUID
	GroupID        uuid.UUID
	Description    string
	Amount         decimal.Decimal
	IsDistributed  bool
	PerMemberShare *decimal.Decimal // nil until distributed
	CreatedBy      uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due is an ad-hoc charge assigned to every active member of a group.
type Due struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	Name    string
	Amount  decimal.Decimal
	DueDate time.Time

	CreatedAt time.Time
}

// ContributionWeek is the authoritative week table. Contributions are always
// resolved against a week row; there is no week-of-year arithmetic.
type ContributionWeek struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	StartDate  time.Time
	BaseAmount decimal.Decimal
	Penalty    decimal.Decimal
	DueDate    time.Time

	CreatedAt time.Time
}
