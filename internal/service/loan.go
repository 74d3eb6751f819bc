package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// LoanService drives the loan lifecycle:
// requested → approved → disbursed → partially_repaid → fully_repaid,
// with rejected as the alternate exit from requested.
type LoanService struct {
	tx      TxRunner
	groups  GroupStore
	loans   LoanStore
	storage ProofStorage
	balance *BalanceService
}

func NewLoanService(tx TxRunner, groups GroupStore, loans LoanStore, storage ProofStorage, balance *BalanceService) *LoanService {
	return &LoanService{tx: tx, groups: groups, loans: loans, storage: storage, balance: balance}
}

type RequestLoanInput struct {
	Type    domain.LoanType
	Amount  decimal.Decimal
	DueDate time.Time

	// ProvidingGroupID names the lending group for inter-group loans and is
	// ignored for intra-group ones.
	ProvidingGroupID *uuid.UUID
}

// Request validates policy caps and the one-open-loan rules, then records the
// loan in requested. No funds move here.
func (s *LoanService) Request(ctx context.Context, requesterID uuid.UUID, in RequestLoanInput) (*domain.Loan, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalidf("loan amount must be positive")
	}
	if !in.DueDate.After(time.Now()) {
		return nil, domain.Invalidf("loan due date must be in the future")
	}

	var loan *domain.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		requester, err := s.groups.GetMember(ctx, requesterID)
		if err != nil {
			return err
		}
		if requester.GroupID == nil {
			return domain.Invalidf("member has not joined a group")
		}
		group, err := s.groups.GetByID(ctx, *requester.GroupID)
		if err != nil {
			return err
		}

		now := time.Now()
		loan = &domain.Loan{
			ID:              uuid.New(),
			Type:            in.Type,
			RequesterID:     requesterID,
			RequestingGroup: group.ID,
			AmountRequested: in.Amount,
			FeeApplied:      decimal.Zero,
			TotalRepaid:     decimal.Zero,
			Status:          domain.LoanRequested,
			DueDate:         in.DueDate,
			RequestedAt:     now,
			UpdatedAt:       now,
		}

		switch in.Type {
		case domain.LoanIntraGroup:
			loan.ProvidingGroup = group.ID
			loan.FeeApplied = group.IntraLoanFee
			if group.MaxIntraLoanPerMember.IsPositive() && in.Amount.GreaterThan(group.MaxIntraLoanPerMember) {
				return domain.Invalidf("amount exceeds the per-member loan cap of %s", group.MaxIntraLoanPerMember)
			}
			open, err := s.loans.HasOpenForMember(ctx, requesterID)
			if err != nil {
				return err
			}
			if open {
				return domain.Conflictf("member already has an open loan")
			}
		case domain.LoanInterGroup:
			if !requester.Role.CanManageFunds() {
				return domain.Unauthorizedf("inter-group loans are requested by fund managers")
			}
			if in.ProvidingGroupID == nil {
				return domain.Invalidf("providing group is required for inter-group loans")
			}
			if *in.ProvidingGroupID == group.ID {
				return domain.Invalidf("providing group must differ from the requesting group")
			}
			provider, err := s.groups.GetByID(ctx, *in.ProvidingGroupID)
			if err != nil {
				return err
			}
			loan.ProvidingGroup = provider.ID
			if provider.MaxInterLoanLimit.IsPositive() && in.Amount.GreaterThan(provider.MaxInterLoanLimit) {
				return domain.Invalidf("amount exceeds the providing group's loan limit of %s", provider.MaxInterLoanLimit)
			}
			open, err := s.loans.HasOpenBetweenGroups(ctx, group.ID, provider.ID)
			if err != nil {
				return err
			}
			if open {
				return domain.Conflictf("an open loan already exists between these groups")
			}
		default:
			return domain.Invalidf("unknown loan type %q", in.Type)
		}

		return s.loans.Create(ctx, loan)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Approve commits funds to a requested loan. The providing group's row lock
// serializes concurrent approvals, so the headroom check holds: the approved
// amount must fit within the balance minus already-committed approvals.
func (s *LoanService) Approve(ctx context.Context, approverID, loanID uuid.UUID, amount *decimal.Decimal) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		if err := s.requireProviderManager(ctx, approverID, l); err != nil {
			return err
		}

		approved := l.AmountRequested
		if amount != nil {
			approved = *amount
		}
		if approved.LessThanOrEqual(decimal.Zero) {
			return domain.Invalidf("approved amount must be positive")
		}
		if approved.GreaterThan(l.AmountRequested) {
			return domain.Invalidf("approved amount exceeds the requested %s", l.AmountRequested)
		}

		// Locks the provider row; later approvals wait here and re-read the
		// headroom including this loan's commitment.
		if _, err := s.groups.GetForUpdate(ctx, l.ProvidingGroup); err != nil {
			return err
		}
		headroom, err := s.balance.spendable(ctx, l.ProvidingGroup)
		if err != nil {
			return err
		}
		if approved.GreaterThan(headroom) {
			return domain.InsufficientBalancef("group has %s available, loan needs %s", headroom, approved)
		}

		ok, err := s.loans.Approve(ctx, loanID, approved, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflictf("loan already processed")
		}

		loan, err = s.loans.GetByID(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Reject closes a requested loan with a reason.
func (s *LoanService) Reject(ctx context.Context, approverID, loanID uuid.UUID, reason string) (*domain.Loan, error) {
	if reason == "" {
		return nil, domain.Invalidf("rejection reason is required")
	}

	var loan *domain.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		if err := s.requireProviderManager(ctx, approverID, l); err != nil {
			return err
		}

		ok, err := s.loans.Reject(ctx, loanID, reason, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflictf("loan already processed")
		}

		loan, err = s.loans.GetByID(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

type DisburseInput struct {
	ExternalRef *string

	ProofFileName string
	ProofData     []byte
	ProofType     string
}

// Disburse marks an approved loan as paid out. From this point the principal
// reduces the provider's balance via the outstanding term. The proof upload
// is best-effort; a storage outage never blocks the hand-over of funds.
func (s *LoanService) Disburse(ctx context.Context, actorID, loanID uuid.UUID, in DisburseInput) (*domain.Loan, error) {
	var proofURL *string
	if len(in.ProofData) > 0 {
		url, err := s.storage.Upload(ctx, in.ProofFileName, in.ProofData, in.ProofType)
		if err != nil {
			slog.Warn("disbursement proof upload failed, continuing without proof",
				"loan_id", loanID, "error", domain.ErrExternalDependency, "cause", err)
		} else {
			proofURL = &url
		}
	}

	var loan *domain.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		if err := s.requireProviderManager(ctx, actorID, l); err != nil {
			return err
		}

		ok, err := s.loans.MarkDisbursed(ctx, loanID, proofURL, in.ExternalRef, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflictf("loan is not approved for disbursement")
		}

		loan, err = s.loans.GetByID(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.balance.invalidate(ctx, loan.ProvidingGroup)
	return loan, nil
}

// RecordRepayment books a manual repayment entry, outside the payment ledger.
// Verified loan-repayment payments take the ledger path instead.
func (s *LoanService) RecordRepayment(ctx context.Context, actorID, loanID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if err := s.requireProviderManager(ctx, actorID, l); err != nil {
			return err
		}

		if err := l.ApplyRepayment(amount); err != nil {
			return err
		}
		if err := s.loans.SaveRepaymentState(ctx, l); err != nil {
			return err
		}
		if err := s.loans.CreateRepayment(ctx, &domain.LoanRepayment{
			ID:         uuid.New(),
			LoanID:     l.ID,
			Amount:     amount,
			RecordedBy: actorID,
			CreatedAt:  time.Now(),
		}); err != nil {
			return err
		}

		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.balance.invalidate(ctx, loan.ProvidingGroup)
	return loan, nil
}

// Get returns a loan to its requester or to a fund manager of either side.
func (s *LoanService) Get(ctx context.Context, actorID, loanID uuid.UUID) (*domain.Loan, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.RequesterID == actorID {
		return l, nil
	}
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role.CanManageFunds() && (actor.InGroup(l.ProvidingGroup) || actor.InGroup(l.RequestingGroup)) {
		return l, nil
	}
	return nil, domain.Unauthorizedf("no access to this loan")
}

func (s *LoanService) Repayments(ctx context.Context, actorID, loanID uuid.UUID) ([]domain.LoanRepayment, error) {
	if _, err := s.Get(ctx, actorID, loanID); err != nil {
		return nil, err
	}
	return s.loans.ListRepayments(ctx, loanID)
}

func (s *LoanService) requireProviderManager(ctx context.Context, actorID uuid.UUID, l *domain.Loan) error {
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.InGroup(l.ProvidingGroup) || !actor.Role.CanManageFunds() {
		return domain.Unauthorizedf("requires a fund manager of the providing group")
	}
	return nil
}
