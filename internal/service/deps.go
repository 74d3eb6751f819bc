package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// Store interfaces are declared here, at the consumer, and satisfied by the
// repository package. Tests swap in in-memory fakes.

// TxRunner executes fn as one all-or-nothing unit. Every mutation that
// touches more than one entity goes through it.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type GroupStore interface {
	Create(ctx context.Context, g *domain.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	GetByInviteCode(ctx context.Context, code string) (*domain.Group, error)
	GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	CreateMember(ctx context.Context, m *domain.Member) error
	SetMemberGroup(ctx context.Context, memberID, groupID uuid.UUID, at time.Time) error
	SetMemberRole(ctx context.Context, memberID uuid.UUID, role domain.Role, at time.Time) error
	CountActiveMembers(ctx context.Context, groupID uuid.UUID) (int, error)
	ListActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)
}

type ObligationStore interface {
	Create(ctx context.Context, o *domain.Obligation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Obligation, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Obligation, error)
	FindContributionForUpdate(ctx context.Context, memberID, weekID uuid.UUID) (*domain.Obligation, error)
	Save(ctx context.Context, o *domain.Obligation) error
	MarkOverdue(ctx context.Context, groupID uuid.UUID, asOf time.Time) error
	RevertOverdue(ctx context.Context, groupID uuid.UUID, asOf time.Time) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Obligation, error)
	ListForExpenseForUpdate(ctx context.Context, expenseID uuid.UUID) ([]domain.Obligation, error)
	DeleteWithAllocations(ctx context.Context, id uuid.UUID) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	CreateAllocation(ctx context.Context, a *domain.Allocation) error
	Allocations(ctx context.Context, paymentID uuid.UUID) ([]domain.Allocation, error)
	HasActiveForObligation(ctx context.Context, memberID, obligationID uuid.UUID) (bool, error)
	MarkVerified(ctx context.Context, id, verifierID uuid.UUID, notes *string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id, verifierID uuid.UUID, notes *string, at time.Time) (bool, error)
	SumVerifiedByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error)
}

type LoanStore interface {
	Create(ctx context.Context, l *domain.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	HasOpenForMember(ctx context.Context, memberID uuid.UUID) (bool, error)
	HasOpenBetweenGroups(ctx context.Context, a, b uuid.UUID) (bool, error)
	Approve(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	MarkDisbursed(ctx context.Context, id uuid.UUID, proofURL, externalRef *string, at time.Time) (bool, error)
	SaveRepaymentState(ctx context.Context, l *domain.Loan) error
	CreateRepayment(ctx context.Context, rp *domain.LoanRepayment) error
	ListRepayments(ctx context.Context, loanID uuid.UUID) ([]domain.LoanRepayment, error)
	OutstandingPrincipal(ctx context.Context, providingGroup uuid.UUID) (decimal.Decimal, error)
	ApprovedPrincipal(ctx context.Context, providingGroup uuid.UUID) (decimal.Decimal, error)
}

type ExpenseStore interface {
	Create(ctx context.Context, e *domain.Expense) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Expense, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Expense, error)
	SetDistribution(ctx context.Context, id uuid.UUID, share *decimal.Decimal, distributed bool, at time.Time) error
	UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error
	SumByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error)
}

type DueStore interface {
	Create(ctx context.Context, d *domain.Due) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Due, error)
	ListOpenByGroup(ctx context.Context, groupID uuid.UUID, asOf time.Time) ([]domain.Due, error)
}

type WeekStore interface {
	Create(ctx context.Context, w *domain.ContributionWeek) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ContributionWeek, error)
	FindByStart(ctx context.Context, groupID uuid.UUID, start time.Time) (*domain.ContributionWeek, error)
}

// ProofStorage is the external upload collaborator. Failures degrade to a
// nil proof reference; they never block a financial mutation.
type ProofStorage interface {
	Upload(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
}

// Notifier delivers post-commit events to a member, fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, memberID uuid.UUID, event string, payload map[string]any) error
}

// BalanceCache holds group balance snapshots for the read endpoint. The
// authoritative in-transaction balance computation never consults it.
type BalanceCache interface {
	Get(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, bool, error)
	Set(ctx context.Context, groupID uuid.UUID, balance decimal.Decimal) error
	Invalidate(ctx context.Context, groupID uuid.UUID) error
}
