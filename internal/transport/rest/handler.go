package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
	"github.com/Meixii/thesis-production-sub001/internal/service"
	"github.com/Meixii/thesis-production-sub001/internal/transport/auth"
)

type GroupAccounts interface {
	Create(ctx context.Context, creatorID uuid.UUID, in service.CreateGroupInput) (*domain.Group, error)
	Register(ctx context.Context, fullName string) (*domain.Member, error)
	Join(ctx context.Context, memberID uuid.UUID, inviteCode string) (*domain.Group, error)
	Get(ctx context.Context, actorID, groupID uuid.UUID) (*domain.Group, error)
	Members(ctx context.Context, actorID, groupID uuid.UUID) ([]domain.Member, error)
}

type PaymentLedger interface {
	Submit(ctx context.Context, payerID uuid.UUID, in service.SubmitPaymentInput) (*domain.Payment, error)
	Verify(ctx context.Context, verifierID, paymentID uuid.UUID, notes *string) (*domain.Payment, error)
	Reject(ctx context.Context, verifierID, paymentID uuid.UUID, notes *string) (*domain.Payment, error)
	Get(ctx context.Context, actorID, paymentID uuid.UUID) (*domain.Payment, error)
}

type LoanLifecycle interface {
	Request(ctx context.Context, requesterID uuid.UUID, in service.RequestLoanInput) (*domain.Loan, error)
	Approve(ctx context.Context, approverID, loanID uuid.UUID, amount *decimal.Decimal) (*domain.Loan, error)
	Reject(ctx context.Context, approverID, loanID uuid.UUID, reason string) (*domain.Loan, error)
	Disburse(ctx context.Context, actorID, loanID uuid.UUID, in service.DisburseInput) (*domain.Loan, error)
	RecordRepayment(ctx context.Context, actorID, loanID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error)
	Get(ctx context.Context, actorID, loanID uuid.UUID) (*domain.Loan, error)
	Repayments(ctx context.Context, actorID, loanID uuid.UUID) ([]domain.LoanRepayment, error)
}

type ExpenseLedger interface {
	Create(ctx context.Context, actorID uuid.UUID, description string, amount decimal.Decimal) (*domain.Expense, error)
	Distribute(ctx context.Context, actorID, expenseID uuid.UUID) (*domain.Expense, error)
	UpdateAmount(ctx context.Context, actorID, expenseID uuid.UUID, amount decimal.Decimal) (*domain.Expense, error)
	Get(ctx context.Context, actorID, expenseID uuid.UUID) (*domain.Expense, error)
}

type ObligationLedger interface {
	CreateWeek(ctx context.Context, actorID uuid.UUID, in service.CreateWeekInput) (*domain.ContributionWeek, error)
	CreateDue(ctx context.Context, actorID uuid.UUID, in service.CreateDueInput) (*domain.Due, error)
	ListForMember(ctx context.Context, actorID, memberID uuid.UUID) ([]domain.Obligation, error)
	Reset(ctx context.Context, actorID, obligationID uuid.UUID) error
}

type BalanceReader interface {
	AvailableCached(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error)
}

// Sockets upgrades a request into the member's notification stream.
type Sockets interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, memberID uuid.UUID)
}

type Handler struct {
	groups      GroupAccounts
	payments    PaymentLedger
	loans       LoanLifecycle
	expenses    ExpenseLedger
	obligations ObligationLedger
	balance     BalanceReader
	sockets     Sockets

	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(
	groups GroupAccounts,
	payments PaymentLedger,
	loans LoanLifecycle,
	expenses ExpenseLedger,
	obligations ObligationLedger,
	balance BalanceReader,
	sockets Sockets,
	jwtSecret []byte,
	tokenTTL time.Duration,
) *Handler {
	return &Handler{
		groups:      groups,
		payments:    payments,
		loans:       loans,
		expenses:    expenses,
		obligations: obligations,
		balance:     balance,
		sockets:     sockets,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		Success(w, "ok", nil)
	})
	r.Post("/auth/register", h.register)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtSecret))

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", h.createGroup)
			r.Post("/join", h.joinGroup)
			r.Get("/{group_id}", h.getGroup)
			r.Get("/{group_id}/members", h.listMembers)
			r.Get("/{group_id}/balance", h.getBalance)
			r.Post("/{group_id}/weeks", h.createWeek)
			r.Post("/{group_id}/dues", h.createDue)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.submitPayment)
			r.Get("/{payment_id}", h.getPayment)
			r.Post("/{payment_id}/verify", h.verifyPayment)
			r.Post("/{payment_id}/reject", h.rejectPayment)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", h.createExpense)
			r.Get("/{expense_id}", h.getExpense)
			r.Post("/{expense_id}/distribute", h.distributeExpense)
			r.Patch("/{expense_id}/amount", h.updateExpenseAmount)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", h.requestLoan)
			r.Get("/{loan_id}", h.getLoan)
			r.Post("/{loan_id}/approve", h.approveLoan)
			r.Post("/{loan_id}/reject", h.rejectLoan)
			r.Post("/{loan_id}/disburse", h.disburseLoan)
			r.Get("/{loan_id}/repayments", h.listRepayments)
			r.Post("/{loan_id}/repayments", h.recordRepayment)
		})

		r.Route("/obligations", func(r chi.Router) {
			r.Get("/", h.listOwnObligations)
			r.Get("/members/{member_id}", h.listMemberObligations)
			r.Delete("/{obligation_id}", h.resetObligation)
		})

		r.Get("/ws", h.serveWebSocket)
	})

	return r
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	h.sockets.HandleWebSocket(w, r, principal.MemberID)
}

func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, &ValidationError{Field: param, Message: param + " must be a UUID"}
	}
	return id, nil
}
