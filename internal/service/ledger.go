package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// LedgerService is the reconciliation coordinator for payments: submission,
// verification and rejection each run as one transaction across the payment,
// its allocations, the target obligation, and (for repayments) the loan.
type LedgerService struct {
	tx          TxRunner
	groups      GroupStore
	obligations ObligationStore
	payments    PaymentStore
	loans       LoanStore
	weeks       WeekStore
	storage     ProofStorage
	notifier    Notifier
	balance     *BalanceService
}

func NewLedgerService(
	tx TxRunner,
	groups GroupStore,
	obligations ObligationStore,
	payments PaymentStore,
	loans LoanStore,
	weeks WeekStore,
	storage ProofStorage,
	notifier Notifier,
	balance *BalanceService,
) *LedgerService {
	return &LedgerService{
		tx:          tx,
		groups:      groups,
		obligations: obligations,
		payments:    payments,
		loans:       loans,
		weeks:       weeks,
		storage:     storage,
		notifier:    notifier,
		balance:     balance,
	}
}

// SubmitPaymentInput identifies the target by purpose: a week start date for
// contributions, an obligation id for dues and expense shares, a loan id for
// repayments.
type SubmitPaymentInput struct {
	Amount      decimal.Decimal
	Method      string
	ReferenceID string
	Purpose     domain.PaymentPurpose

	WeekStart    *time.Time
	ObligationID *uuid.UUID
	LoanID       *uuid.UUID

	ProofFileName string
	ProofData     []byte
	ProofType     string
}

// Submit records a payment in pending_verification and flips the target
// obligation to pending. Amounts are NOT applied here; that happens at
// verification only, which is what makes rejection free of amount effects.
func (s *LedgerService) Submit(ctx context.Context, payerID uuid.UUID, in SubmitPaymentInput) (*domain.Payment, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalidf("payment amount must be positive")
	}
	if in.Method == "" {
		return nil, domain.Invalidf("payment method is required")
	}

	// Proof upload happens outside the transaction; a storage outage must
	// never hold a ledger lock or block the submission.
	proofURL := s.uploadProof(ctx, in.ProofFileName, in.ProofData, in.ProofType)

	var payment *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		payer, err := s.groups.GetMember(ctx, payerID)
		if err != nil {
			return err
		}
		if payer.GroupID == nil {
			return domain.Invalidf("member has not joined a group")
		}
		groupID := *payer.GroupID

		now := time.Now()
		payment = &domain.Payment{
			ID:          uuid.New(),
			PayerID:     payerID,
			GroupID:     groupID,
			Amount:      in.Amount,
			Method:      in.Method,
			ReferenceID: in.ReferenceID,
			ProofURL:    proofURL,
			Purpose:     in.Purpose,
			Status:      domain.PaymentPendingVerify,
			CreatedAt:   now,
		}

		switch in.Purpose {
		case domain.PurposeContribution:
			return s.submitContribution(ctx, payer, groupID, payment, in, now)
		case domain.PurposeDue, domain.PurposeExpenseShare:
			return s.submitForObligation(ctx, payer, payment, in, now)
		case domain.PurposeLoanRepay:
			return s.submitLoanRepayment(ctx, payer, payment, in)
		default:
			return domain.Invalidf("unknown payment purpose %q", in.Purpose)
		}
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, payerID, "payment_submitted", map[string]any{
		"payment_id": payment.ID,
		"amount":     payment.Amount,
		"purpose":    payment.Purpose,
	})
	return payment, nil
}

// submitContribution resolves (or creates) the member's obligation for the
// week identified by its start date. The week table is authoritative; an
// unknown start date is an error, never arithmetic.
func (s *LedgerService) submitContribution(ctx context.Context, payer *domain.Member, groupID uuid.UUID, payment *domain.Payment, in SubmitPaymentInput, now time.Time) error {
	if in.WeekStart == nil {
		return domain.Invalidf("week start date is required for contributions")
	}
	week, err := s.weeks.FindByStart(ctx, groupID, *in.WeekStart)
	if err != nil {
		return err
	}

	obligation, err := s.obligations.FindContributionForUpdate(ctx, payer.ID, week.ID)
	created := false
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// First submission for this week creates the obligation.
		created = true
		obligation = &domain.Obligation{
			ID:            uuid.New(),
			MemberID:      payer.ID,
			GroupID:       groupID,
			Kind:          domain.KindContribution,
			SourceID:      week.ID,
			BaseAmountDue: week.BaseAmount,
			Penalty:       decimal.Zero,
			AmountPaid:    decimal.Zero,
			Status:        domain.ObligationUnpaid,
			DueDate:       &week.DueDate,
			CreatedAt:     now,
		}
	case err != nil:
		return err
	}

	// A contribution settled past its due date owes the week's late penalty.
	// It attaches once, and only while nothing has been verified yet.
	if now.After(week.DueDate) && obligation.AmountPaid.IsZero() && obligation.Penalty.IsZero() {
		obligation.Penalty = week.Penalty
	}

	if !in.Amount.Equal(obligation.Remaining()) {
		return domain.Invalidf("amount mismatch: contribution owed for this week is %s", obligation.Remaining())
	}
	if created {
		if err := s.obligations.Create(ctx, obligation); err != nil {
			return err
		}
	}

	return s.attach(ctx, payer.ID, payment, obligation)
}

func (s *LedgerService) submitForObligation(ctx context.Context, payer *domain.Member, payment *domain.Payment, in SubmitPaymentInput, now time.Time) error {
	if in.ObligationID == nil {
		return domain.Invalidf("obligation id is required")
	}
	obligation, err := s.obligations.GetForUpdate(ctx, *in.ObligationID)
	if err != nil {
		return err
	}
	if obligation.MemberID != payer.ID {
		return domain.Unauthorizedf("obligation belongs to another member")
	}
	if kind := obligationKindFor(in.Purpose); obligation.Kind != kind {
		return domain.Invalidf("obligation is a %s, payment targets a %s", obligation.Kind, kind)
	}
	if obligation.Status == domain.ObligationPaid {
		return domain.Conflictf("obligation is already settled")
	}

	switch in.Purpose {
	case domain.PurposeDue:
		if !in.Amount.Equal(obligation.Remaining()) {
			return domain.Invalidf("amount mismatch: remaining balance is %s", obligation.Remaining())
		}
	case domain.PurposeExpenseShare:
		// Expense shares accept partial payments but never more than what
		// remains, so verification cannot over-allocate.
		if in.Amount.GreaterThan(obligation.Remaining()) {
			return domain.Invalidf("amount exceeds remaining share of %s", obligation.Remaining())
		}
	}

	return s.attach(ctx, payer.ID, payment, obligation)
}

// attach creates the payment plus its single allocation and flips the
// obligation to pending_verification. The caller holds the obligation row
// lock, which makes the duplicate check race-free.
func (s *LedgerService) attach(ctx context.Context, payerID uuid.UUID, payment *domain.Payment, obligation *domain.Obligation) error {
	duplicate, err := s.payments.HasActiveForObligation(ctx, payerID, obligation.ID)
	if err != nil {
		return err
	}
	if duplicate {
		return domain.Conflictf("a pending or verified payment already exists for this obligation")
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return err
	}
	if err := s.payments.CreateAllocation(ctx, &domain.Allocation{
		ID:           uuid.New(),
		PaymentID:    payment.ID,
		ObligationID: obligation.ID,
		Amount:       payment.Amount,
		CreatedAt:    payment.CreatedAt,
	}); err != nil {
		return err
	}

	obligation.Status = domain.ObligationPendingVerify
	return s.obligations.Save(ctx, obligation)
}

func (s *LedgerService) submitLoanRepayment(ctx context.Context, payer *domain.Member, payment *domain.Payment, in SubmitPaymentInput) error {
	if in.LoanID == nil {
		return domain.Invalidf("loan id is required for repayments")
	}
	loan, err := s.loans.GetForUpdate(ctx, *in.LoanID)
	if err != nil {
		return err
	}
	if loan.RequesterID != payer.ID {
		return domain.Unauthorizedf("loan belongs to another member")
	}
	if loan.Status != domain.LoanDisbursed && loan.Status != domain.LoanPartiallyRepaid {
		return domain.Conflictf("loan is %s, repayments require a disbursed loan", loan.Status)
	}

	payment.LoanID = in.LoanID
	// Repayments go to the providing group's ledger.
	payment.GroupID = loan.ProvidingGroup
	return s.payments.Create(ctx, payment)
}

// Verify applies a pending payment: exactly-once via the conditional status
// write, then allocation amounts onto obligations, then loan bookkeeping for
// repayments. One atomic unit.
func (s *LedgerService) Verify(ctx context.Context, verifierID, paymentID uuid.UUID, notes *string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := s.requireVerifier(ctx, verifierID, p.GroupID); err != nil {
			return err
		}

		now := time.Now()
		ok, err := s.payments.MarkVerified(ctx, paymentID, verifierID, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflictf("payment already processed")
		}

		allocations, err := s.payments.Allocations(ctx, paymentID)
		if err != nil {
			return err
		}
		for _, a := range allocations {
			obligation, err := s.obligations.GetForUpdate(ctx, a.ObligationID)
			if err != nil {
				return err
			}
			if err := obligation.Apply(a.Amount); err != nil {
				return err
			}
			if err := s.obligations.Save(ctx, obligation); err != nil {
				return err
			}
		}

		if p.Purpose == domain.PurposeLoanRepay {
			if err := s.applyLoanRepayment(ctx, p, verifierID, now); err != nil {
				return err
			}
		}

		payment, err = s.payments.GetByID(ctx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.balance.invalidate(ctx, payment.GroupID)
	s.notify(ctx, payment.PayerID, "payment_verified", map[string]any{
		"payment_id": payment.ID,
		"amount":     payment.Amount,
	})
	return payment, nil
}

func (s *LedgerService) applyLoanRepayment(ctx context.Context, p *domain.Payment, verifierID uuid.UUID, now time.Time) error {
	if p.LoanID == nil {
		return domain.Invalidf("repayment payment has no loan reference")
	}
	loan, err := s.loans.GetForUpdate(ctx, *p.LoanID)
	if err != nil {
		return err
	}
	if err := loan.ApplyRepayment(p.Amount); err != nil {
		return err
	}
	if err := s.loans.SaveRepaymentState(ctx, loan); err != nil {
		return err
	}
	return s.loans.CreateRepayment(ctx, &domain.LoanRepayment{
		ID:         uuid.New(),
		LoanID:     loan.ID,
		PaymentID:  &p.ID,
		Amount:     p.Amount,
		RecordedBy: verifierID,
		CreatedAt:  now,
	})
}

// Reject resolves a pending payment without applying anything: the pending
// amount was never added, so only the obligation status is recomputed. Loan
// state is untouched; a rejected repayment simply never happened.
func (s *LedgerService) Reject(ctx context.Context, verifierID, paymentID uuid.UUID, notes *string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := s.requireVerifier(ctx, verifierID, p.GroupID); err != nil {
			return err
		}

		ok, err := s.payments.MarkRejected(ctx, paymentID, verifierID, notes, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflictf("payment already processed")
		}

		allocations, err := s.payments.Allocations(ctx, paymentID)
		if err != nil {
			return err
		}
		for _, a := range allocations {
			obligation, err := s.obligations.GetForUpdate(ctx, a.ObligationID)
			if err != nil {
				return err
			}
			obligation.RevertPending()
			if err := s.obligations.Save(ctx, obligation); err != nil {
				return err
			}
		}

		payment, err = s.payments.GetByID(ctx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, payment.PayerID, "payment_rejected", map[string]any{
		"payment_id": payment.ID,
		"amount":     payment.Amount,
	})
	return payment, nil
}

// Get returns a payment to its payer or to a fund manager of its group.
func (s *LedgerService) Get(ctx context.Context, actorID, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID == actorID {
		return p, nil
	}
	if err := s.requireVerifier(ctx, actorID, p.GroupID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *LedgerService) requireVerifier(ctx context.Context, actorID, groupID uuid.UUID) error {
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.InGroup(groupID) || !actor.Role.CanManageFunds() {
		return domain.Unauthorizedf("requires a fund manager of the group")
	}
	return nil
}

func (s *LedgerService) uploadProof(ctx context.Context, fileName string, data []byte, contentType string) *string {
	if len(data) == 0 {
		return nil
	}
	url, err := s.storage.Upload(ctx, fileName, data, contentType)
	if err != nil {
		slog.Warn("proof upload failed, continuing without proof",
			"file", fileName, "error", domain.ErrExternalDependency, "cause", err)
		return nil
	}
	return &url
}

func (s *LedgerService) notify(ctx context.Context, memberID uuid.UUID, event string, payload map[string]any) {
	if err := s.notifier.Notify(ctx, memberID, event, payload); err != nil {
		slog.Warn("notification dispatch failed", "event", event, "member_id", memberID, "error", err)
	}
}

func obligationKindFor(p domain.PaymentPurpose) domain.ObligationKind {
	switch p {
	case domain.PurposeDue:
		return domain.KindDue
	case domain.PurposeExpenseShare:
		return domain.KindExpenseShare
	default:
		return domain.KindContribution
	}
}
