package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// ObligationService manages the sources of member debt (contribution weeks
// and dues) and the obligation listings derived from them.
type ObligationService struct {
	tx          TxRunner
	groups      GroupStore
	obligations ObligationStore
	weeks       WeekStore
	dues        DueStore
}

func NewObligationService(tx TxRunner, groups GroupStore, obligations ObligationStore, weeks WeekStore, dues DueStore) *ObligationService {
	return &ObligationService{tx: tx, groups: groups, obligations: obligations, weeks: weeks, dues: dues}
}

type CreateWeekInput struct {
	StartDate  time.Time
	BaseAmount decimal.Decimal
	Penalty    decimal.Decimal
	DueDate    time.Time
}

// CreateWeek registers a contribution week. Member obligations for the week
// are created lazily, on each member's first submission against it.
func (s *ObligationService) CreateWeek(ctx context.Context, actorID uuid.UUID, in CreateWeekInput) (*domain.ContributionWeek, error) {
	if in.BaseAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalidf("base amount must be positive")
	}
	if in.Penalty.IsNegative() {
		return nil, domain.Invalidf("penalty must be non-negative")
	}
	if in.DueDate.Before(in.StartDate) {
		return nil, domain.Invalidf("due date must not precede the start date")
	}

	_, groupID, err := s.requireManager(ctx, actorID)
	if err != nil {
		return nil, err
	}

	week := &domain.ContributionWeek{
		ID:         uuid.New(),
		GroupID:    groupID,
		StartDate:  in.StartDate,
		BaseAmount: in.BaseAmount,
		Penalty:    in.Penalty,
		DueDate:    in.DueDate,
		CreatedAt:  time.Now(),
	}
	if err := s.weeks.Create(ctx, week); err != nil {
		return nil, err
	}
	return week, nil
}

type CreateDueInput struct {
	Name    string
	Amount  decimal.Decimal
	DueDate time.Time
}

// CreateDue records an ad-hoc charge and immediately assigns an obligation to
// every active member, in one transaction. Members joining later are
// backfilled at join time while the due is still open.
func (s *ObligationService) CreateDue(ctx context.Context, actorID uuid.UUID, in CreateDueInput) (*domain.Due, error) {
	if in.Name == "" {
		return nil, domain.Invalidf("due name is required")
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalidf("due amount must be positive")
	}

	var due *domain.Due
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, groupID, err := s.requireManager(ctx, actorID)
		if err != nil {
			return err
		}

		now := time.Now()
		due = &domain.Due{
			ID:        uuid.New(),
			GroupID:   groupID,
			Name:      in.Name,
			Amount:    in.Amount,
			DueDate:   in.DueDate,
			CreatedAt: now,
		}
		if err := s.dues.Create(ctx, due); err != nil {
			return err
		}

		members, err := s.groups.ListActiveMembers(ctx, groupID)
		if err != nil {
			return err
		}
		for _, m := range members {
			o := &domain.Obligation{
				ID:            uuid.New(),
				MemberID:      m.ID,
				GroupID:       groupID,
				Kind:          domain.KindDue,
				SourceID:      due.ID,
				BaseAmountDue: in.Amount,
				Penalty:       decimal.Zero,
				AmountPaid:    decimal.Zero,
				Status:        domain.ObligationUnpaid,
				DueDate:       &due.DueDate,
				CreatedAt:     now,
			}
			if err := s.obligations.Create(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// ListForMember returns a member's obligations after sweeping overdue flags
// for the group. The sweep is lazy: there is no scheduler, reads settle the
// flags in both directions before listing.
func (s *ObligationService) ListForMember(ctx context.Context, actorID, memberID uuid.UUID) ([]domain.Obligation, error) {
	target, err := s.groups.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if actorID != memberID {
		actor, err := s.groups.GetMember(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if target.GroupID == nil || !actor.InGroup(*target.GroupID) || !actor.Role.CanManageFunds() {
			return nil, domain.Unauthorizedf("requires a fund manager of the member's group")
		}
	}
	if target.GroupID == nil {
		return nil, nil
	}

	var out []domain.Obligation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		if err := s.obligations.MarkOverdue(ctx, *target.GroupID, now); err != nil {
			return err
		}
		if err := s.obligations.RevertOverdue(ctx, *target.GroupID, now); err != nil {
			return err
		}
		var err error
		out, err = s.obligations.ListByMember(ctx, memberID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reset removes an obligation and its allocations, an administrative
// correction for rows created in error. Obligations with verified money
// applied are off limits.
func (s *ObligationService) Reset(ctx context.Context, actorID, obligationID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.obligations.GetForUpdate(ctx, obligationID)
		if err != nil {
			return err
		}

		actor, err := s.groups.GetMember(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.InGroup(o.GroupID) || actor.Role != domain.RoleAdmin {
			return domain.Unauthorizedf("requires a group admin")
		}

		if o.AmountPaid.GreaterThan(decimal.Zero) {
			return domain.Conflictf("obligation has verified payments applied")
		}
		if o.Status == domain.ObligationPendingVerify {
			return domain.Conflictf("obligation has a payment awaiting verification")
		}

		return s.obligations.DeleteWithAllocations(ctx, obligationID)
	})
}

func (s *ObligationService) requireManager(ctx context.Context, actorID uuid.UUID) (*domain.Member, uuid.UUID, error) {
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if actor.GroupID == nil {
		return nil, uuid.Nil, domain.Invalidf("member has not joined a group")
	}
	if !actor.Role.CanManageFunds() {
		return nil, uuid.Nil, domain.Unauthorizedf("requires a fund manager of the group")
	}
	return actor, *actor.GroupID, nil
}
