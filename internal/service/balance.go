package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// BalanceService derives a group's available balance:
//
//	verified collections − expenses − outstanding disbursed loan principal.
//
// It holds no state of its own; called inside a transaction it reads that
// transaction's snapshot, which is what loan approval relies on.
type BalanceService struct {
	groups   GroupStore
	payments PaymentStore
	expenses ExpenseStore
	loans    LoanStore
	cache    BalanceCache
}

func NewBalanceService(groups GroupStore, payments PaymentStore, expenses ExpenseStore, loans LoanStore, cache BalanceCache) *BalanceService {
	return &BalanceService{groups: groups, payments: payments, expenses: expenses, loans: loans, cache: cache}
}

// Available computes the authoritative balance from the store.
func (s *BalanceService) Available(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	collected, err := s.payments.SumVerifiedByGroup(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	spent, err := s.expenses.SumByGroup(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	outstanding, err := s.loans.OutstandingPrincipal(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	return collected.Sub(spent).Sub(outstanding), nil
}

// AvailableCached serves the read endpoint from the redis snapshot when
// present. Mutating services invalidate the snapshot after commit, so a miss
// recomputes and repopulates it.
func (s *BalanceService) AvailableCached(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return decimal.Zero, err
	}

	if cached, ok, err := s.cache.Get(ctx, groupID); err != nil {
		slog.Warn("balance cache read failed", "group_id", groupID, "error", err)
	} else if ok {
		return cached, nil
	}

	balance, err := s.Available(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.cache.Set(ctx, groupID, balance); err != nil {
		slog.Warn("balance cache write failed", "group_id", groupID, "error", err)
	}
	return balance, nil
}

// spendable is the headroom loan approval checks against: the available
// balance minus approved-but-undisbursed commitments, so two approvals
// serialized on the group lock cannot jointly exceed the funds.
func (s *BalanceService) spendable(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.Available(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	committed, err := s.loans.ApprovedPrincipal(ctx, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Sub(committed), nil
}

func (s *BalanceService) invalidate(ctx context.Context, groupID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, groupID); err != nil {
		slog.Warn("balance cache invalidation failed", "group_id", groupID,
			"error", domain.ErrExternalDependency, "cause", err)
	}
}
