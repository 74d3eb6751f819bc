package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleMember             Role = "member"
	RoleFinanceCoordinator Role = "finance_coordinator"
	RoleTreasurer          Role = "treasurer"
	RoleAdmin              Role = "admin"
)

// CanManageFunds reports whether the role may verify payments, manage weeks,
// dues and expenses, and act on loans for its group.
func (r Role) CanManageFunds() bool {
	switch r {
	case RoleFinanceCoordinator, RoleTreasurer, RoleAdmin:
		return true
	}
	return false
}

type Group struct {
	ID         uuid.UUID
	Name       string
	InviteCode string
	BudgetGoal decimal.Decimal

	// Loan policy. All values are non-negative; zero disables the limit.
	MaxIntraLoanPerMember decimal.Decimal
	MaxInterLoanLimit     decimal.Decimal
	IntraLoanFee          decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	ID       uuid.UUID
	GroupID  *uuid.UUID // nil until the member joins a group
	FullName string
	Role     Role
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InGroup reports whether the member belongs to the given group.
func (m *Member) InGroup(groupID uuid.UUID) bool {
	return m.GroupID != nil && *m.GroupID == groupID
}
