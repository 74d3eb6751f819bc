package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// ExpenseService records group expenses and splits them into per-member
// share obligations.
type ExpenseService struct {
	tx          TxRunner
	groups      GroupStore
	expenses    ExpenseStore
	obligations ObligationStore
	balance     *BalanceService
}

func NewExpenseService(tx TxRunner, groups GroupStore, expenses ExpenseStore, obligations ObligationStore, balance *BalanceService) *ExpenseService {
	return &ExpenseService{tx: tx, groups: groups, expenses: expenses, obligations: obligations, balance: balance}
}

// ShareAmount is the even split of an expense, rounded up to the next whole
// unit so the shares always cover the full amount.
func ShareAmount(total decimal.Decimal, members int) decimal.Decimal {
	return total.Div(decimal.NewFromInt(int64(members))).Ceil()
}

// Create records an expense against the group fund. The group lock serializes
// the balance check, so concurrent expenses cannot jointly overdraw.
func (s *ExpenseService) Create(ctx context.Context, actorID uuid.UUID, description string, amount decimal.Decimal) (*domain.Expense, error) {
	if description == "" {
		return nil, domain.Invalidf("expense description is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalidf("expense amount must be positive")
	}

	var expense *domain.Expense
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		actor, groupID, err := s.requireManager(ctx, actorID)
		if err != nil {
			return err
		}

		if _, err := s.groups.GetForUpdate(ctx, groupID); err != nil {
			return err
		}
		available, err := s.balance.Available(ctx, groupID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return domain.InsufficientBalancef("group has %s available, expense is %s", available, amount)
		}

		now := time.Now()
		expense = &domain.Expense{
			ID:          uuid.New(),
			GroupID:     groupID,
			Description: description,
			Amount:      amount,
			CreatedBy:   actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.expenses.Create(ctx, expense)
	})
	if err != nil {
		return nil, err
	}

	s.balance.invalidate(ctx, expense.GroupID)
	return expense, nil
}

// Distribute splits an expense across the group's active members, creating
// one expense-share obligation each. The member set is snapshotted here;
// later joins and departures do not change an already-distributed expense.
func (s *ExpenseService) Distribute(ctx context.Context, actorID, expenseID uuid.UUID) (*domain.Expense, error) {
	var expense *domain.Expense
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.expenses.GetForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if err := s.requireManagerOf(ctx, actorID, e.GroupID); err != nil {
			return err
		}
		if e.IsDistributed {
			return domain.Conflictf("expense is already distributed")
		}

		count, err := s.groups.CountActiveMembers(ctx, e.GroupID)
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.Invalidf("group has no active members to distribute to")
		}
		members, err := s.groups.ListActiveMembers(ctx, e.GroupID)
		if err != nil {
			return err
		}

		share := ShareAmount(e.Amount, count)
		now := time.Now()
		for _, m := range members {
			o := &domain.Obligation{
				ID:            uuid.New(),
				MemberID:      m.ID,
				GroupID:       e.GroupID,
				Kind:          domain.KindExpenseShare,
				SourceID:      e.ID,
				BaseAmountDue: share,
				Penalty:       decimal.Zero,
				AmountPaid:    decimal.Zero,
				Status:        domain.ObligationUnpaid,
				CreatedAt:     now,
			}
			if err := s.obligations.Create(ctx, o); err != nil {
				return err
			}
		}

		if err := s.expenses.SetDistribution(ctx, e.ID, &share, true, now); err != nil {
			return err
		}
		e.IsDistributed = true
		e.PerMemberShare = &share
		expense = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateAmount edits an expense's amount. For a distributed expense the
// shares are rebased from the new amount over the same member count; a share
// never drops below what a member already paid.
func (s *ExpenseService) UpdateAmount(ctx context.Context, actorID, expenseID uuid.UUID, amount decimal.Decimal) (*domain.Expense, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalidf("expense amount must be positive")
	}

	var expense *domain.Expense
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.expenses.GetForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if err := s.requireManagerOf(ctx, actorID, e.GroupID); err != nil {
			return err
		}

		now := time.Now()
		if err := s.expenses.UpdateAmount(ctx, e.ID, amount, now); err != nil {
			return err
		}
		e.Amount = amount
		e.UpdatedAt = now

		if e.IsDistributed {
			shares, err := s.obligations.ListForExpenseForUpdate(ctx, e.ID)
			if err != nil {
				return err
			}
			if len(shares) == 0 {
				return domain.Conflictf("distributed expense has no share obligations")
			}
			share := ShareAmount(amount, len(shares))
			for i := range shares {
				o := &shares[i]
				o.Rebase(share)
				if err := s.obligations.Save(ctx, o); err != nil {
					return err
				}
			}
			if err := s.expenses.SetDistribution(ctx, e.ID, &share, true, now); err != nil {
				return err
			}
			e.PerMemberShare = &share
		}

		expense = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.balance.invalidate(ctx, expense.GroupID)
	return expense, nil
}

func (s *ExpenseService) Get(ctx context.Context, actorID, expenseID uuid.UUID) (*domain.Expense, error) {
	e, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.InGroup(e.GroupID) {
		return nil, domain.Unauthorizedf("expense belongs to another group")
	}
	return e, nil
}

func (s *ExpenseService) requireManager(ctx context.Context, actorID uuid.UUID) (*domain.Member, uuid.UUID, error) {
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

func (s *ExpenseService) requireManagerOf(ctx context.Context, actorID, groupID uuid.UUID) error {
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.InGroup(groupID) || !actor.Role.CanManageFunds() {
		return domain.Unauthorizedf("requires a fund manager of the group")
	}
	return nil
}
