package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

func TestShareAmount_RoundsUp(t *testing.T) {
	cases := []struct {
		total   string
		members int
		want    string
	}{
		{"100", 3, "34"},
		{"100", 4, "25"},
		{"1", 3, "1"},
		{"99", 2, "50"},
	}
	for _, tc := range cases {
		if got := ShareAmount(dec(tc.total), tc.members); !got.Equal(dec(tc.want)) {
			t.Errorf("ShareAmount(%s, %d): expected %s, got %s", tc.total, tc.members, tc.want, got)
		}
	}
}

func TestExpense_CreateChecksBalance(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("300"))

	_, err := e.expenseSvc.Create(ctx, treasurerID, "printing", dec("400"))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	expense, err := e.expenseSvc.Create(ctx, treasurerID, "printing", dec("300"))
	if err != nil {
		t.Fatalf("create within balance: %v", err)
	}
	if expense.IsDistributed {
		t.Error("new expense must not be distributed")
	}

	available, _ := e.balance.Available(ctx, groupID)
	if !available.IsZero() {
		t.Errorf("expected zero after spending everything, got %s", available)
	}
}

func TestExpense_CreateRequiresFundManager(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, _, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("300"))

	_, err := e.expenseSvc.Create(ctx, memberID, "printing", dec("100"))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestExpense_DistributeCreatesShares(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.groups.addMember(&groupID, domain.RoleMember)
	e.seedVerifiedCollection(groupID, memberID, dec("500"))

	expense, err := e.expenseSvc.Create(ctx, treasurerID, "venue", dec("100"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	distributed, err := e.expenseSvc.Distribute(ctx, treasurerID, expense.ID)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !distributed.IsDistributed {
		t.Error("expected distributed flag set")
	}
	// Three active members (treasurer + two): ceil(100/3) = 34.
	if distributed.PerMemberShare == nil || !distributed.PerMemberShare.Equal(dec("34")) {
		t.Errorf("expected share 34, got %v", distributed.PerMemberShare)
	}

	shares, _ := e.obligations.ListForExpenseForUpdate(ctx, expense.ID)
	if len(shares) != 3 {
		t.Fatalf("expected 3 share obligations, got %d", len(shares))
	}
	for _, o := range shares {
		if !o.BaseAmountDue.Equal(dec("34")) || o.Status != domain.ObligationUnpaid {
			t.Errorf("bad share obligation: %s due, status %s", o.BaseAmountDue, o.Status)
		}
	}

	_, err = e.expenseSvc.Distribute(ctx, treasurerID, expense.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second distribution must conflict, got %v", err)
	}
}

func TestExpense_DistributeNeedsActiveMembers(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("300"))

	expense, err := e.expenseSvc.Create(ctx, treasurerID, "venue", dec("100"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	e.groups.mu.Lock()
	for _, m := range e.groups.members {
		m.Active = false
	}
	e.groups.mu.Unlock()

	_, err = e.expenseSvc.Distribute(ctx, treasurerID, expense.ID)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error with an empty roster, got %v", err)
	}

	updated, _ := e.expenseSvc.Get(ctx, treasurerID, expense.ID)
	if updated.IsDistributed {
		t.Error("failed distribution must leave the expense undistributed")
	}
}

func TestExpense_UpdateAmountRebasesShares(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("500"))

	expense, err := e.expenseSvc.Create(ctx, treasurerID, "venue", dec("100"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.expenseSvc.Distribute(ctx, treasurerID, expense.ID); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	// Two members: shares of 50 each. One member pays theirs in full.
	payment, err := e.ledger.Submit(ctx, memberID, SubmitPaymentInput{
		Amount:       dec("50"),
		Method:       "cash",
		Purpose:      domain.PurposeExpenseShare,
		ObligationID: shareFor(t, e, expense.ID, memberID),
	})
	if err != nil {
		t.Fatalf("submit share: %v", err)
	}
	if _, err := e.ledger.Verify(ctx, treasurerID, payment.ID, nil); err != nil {
		t.Fatalf("verify share: %v", err)
	}

	// Shrinking the expense to 60 makes the raw share 30, below the 50
	// already paid. The paid member's base clamps instead of going negative.
	updated, err := e.expenseSvc.UpdateAmount(ctx, treasurerID, expense.ID, dec("60"))
	if err != nil {
		t.Fatalf("update amount: %v", err)
	}
	if updated.PerMemberShare == nil || !updated.PerMemberShare.Equal(dec("30")) {
		t.Errorf("expected share 30, got %v", updated.PerMemberShare)
	}

	shares, _ := e.obligations.ListForExpenseForUpdate(ctx, expense.ID)
	for _, o := range shares {
		switch o.MemberID {
		case memberID:
			if !o.BaseAmountDue.Equal(dec("50")) || o.Status != domain.ObligationPaid {
				t.Errorf("paid share must clamp at 50 and stay paid, got %s %s", o.BaseAmountDue, o.Status)
			}
		default:
			if !o.BaseAmountDue.Equal(dec("30")) || o.Status != domain.ObligationUnpaid {
				t.Errorf("unpaid share must rebase to 30, got %s %s", o.BaseAmountDue, o.Status)
			}
		}
	}
}

func TestExpense_UpdateAmountGrowsShares(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("500"))

	expense, err := e.expenseSvc.Create(ctx, treasurerID, "venue", dec("100"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.expenseSvc.Distribute(ctx, treasurerID, expense.ID); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	updated, err := e.expenseSvc.UpdateAmount(ctx, treasurerID, expense.ID, dec("150"))
	if err != nil {
		t.Fatalf("update amount: %v", err)
	}
	if updated.PerMemberShare == nil || !updated.PerMemberShare.Equal(dec("75")) {
		t.Errorf("expected share 75, got %v", updated.PerMemberShare)
	}

	shares, _ := e.obligations.ListForExpenseForUpdate(ctx, expense.ID)
	for _, o := range shares {
		if !o.BaseAmountDue.Equal(dec("75")) {
			t.Errorf("expected rebased share 75, got %s", o.BaseAmountDue)
		}
	}
}

// shareFor finds the expense-share obligation belonging to a member.
func shareFor(t *testing.T, e *env, expenseID, memberID uuid.UUID) *uuid.UUID {
	t.Helper()
	shares, err := e.obligations.ListForExpenseForUpdate(context.Background(), expenseID)
	if err != nil {
		t.Fatalf("list shares: %v", err)
	}
	for _, o := range shares {
		if o.MemberID == memberID {
			id := o.ID
			return &id
		}
	}
	t.Fatalf("no share obligation for member %s", memberID)
	return nil
}
