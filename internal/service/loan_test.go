package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

func TestLoan_RequestIntraGroup(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, _, memberID := e.seedGroup()

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("300"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if loan.Status != domain.LoanRequested {
		t.Errorf("expected requested, got %s", loan.Status)
	}
	if loan.ProvidingGroup != groupID {
		t.Error("intra-group loan must be provided by the member's own group")
	}
	if !loan.FeeApplied.Equal(dec("10")) {
		t.Errorf("expected group fee 10, got %s", loan.FeeApplied)
	}
}

func TestLoan_RequestExceedsMemberCap(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, _, memberID := e.seedGroup()

	_, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("600"), // cap is 500
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error above the cap, got %v", err)
	}
}

func TestLoan_OneOpenLoanPerMember(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, _, memberID := e.seedGroup()

	in := RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("100"),
		DueDate: time.Now().AddDate(0, 1, 0),
	}
	if _, err := e.loanSvc.Request(ctx, memberID, in); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := e.loanSvc.Request(ctx, memberID, in)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on second open loan, got %v", err)
	}
}

func TestLoan_InterGroupRequiresFundManager(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, _, memberID := e.seedGroup()
	otherID, _, _ := e.seedOtherGroup()

	_, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:             domain.LoanInterGroup,
		Amount:           dec("100"),
		DueDate:          time.Now().AddDate(0, 1, 0),
		ProvidingGroupID: &otherID,
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("plain member must not open inter-group loans, got %v", err)
	}
}

func TestLoan_InterGroupOnePerPair(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, treasurerID, _ := e.seedGroup()
	otherID, _, _ := e.seedOtherGroup()

	in := RequestLoanInput{
		Type:             domain.LoanInterGroup,
		Amount:           dec("500"),
		DueDate:          time.Now().AddDate(0, 1, 0),
		ProvidingGroupID: &otherID,
	}
	if _, err := e.loanSvc.Request(ctx, treasurerID, in); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := e.loanSvc.Request(ctx, treasurerID, in)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for a second loan between the same pair, got %v", err)
	}
}

func TestLoan_ApproveWithinBalance(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("500"))

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("400"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	approved, err := e.loanSvc.Approve(ctx, treasurerID, loan.ID, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.LoanApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.AmountApproved == nil || !approved.AmountApproved.Equal(dec("400")) {
		t.Error("nil amount must default to the full requested amount")
	}
}

func TestLoan_ApproveHeadroomCountsEarlierApprovals(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, member1 := e.seedGroup()
	member2 := e.groups.addMember(&groupID, domain.RoleMember)
	e.seedVerifiedCollection(groupID, member1, dec("500"))

	first, err := e.loanSvc.Request(ctx, member1, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("400"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := e.loanSvc.Request(ctx, member2, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("400"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if _, err := e.loanSvc.Approve(ctx, treasurerID, first.ID, nil); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	// 500 collected minus the 400 already committed leaves 100.
	_, err = e.loanSvc.Approve(ctx, treasurerID, second.ID, nil)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	hundred := dec("100")
	if _, err := e.loanSvc.Approve(ctx, treasurerID, second.ID, &hundred); err != nil {
		t.Fatalf("partial approve within headroom: %v", err)
	}
}

func TestLoan_ConcurrentApprovalsExactlyOneSucceeds(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, member1 := e.seedGroup()
	member2 := e.groups.addMember(&groupID, domain.RoleMember)
	e.seedVerifiedCollection(groupID, member1, dec("500"))

	first, err := e.loanSvc.Request(ctx, member1, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("400"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := e.loanSvc.Request(ctx, member2, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("400"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	// Two 400 approvals race for 500 collected. The group lock serializes
	// them, so whichever lands second must see the other's commitment.
	errs := make(chan error, 2)
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		go func(loanID uuid.UUID) {
			_, err := e.loanSvc.Approve(ctx, treasurerID, loanID, nil)
			errs <- err
		}(id)
	}

	var approved, refused int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			approved++
		case errors.Is(err, domain.ErrInsufficientBalance):
			refused++
		default:
			t.Fatalf("unexpected approve error: %v", err)
		}
	}
	if approved != 1 || refused != 1 {
		t.Fatalf("expected exactly one approval to land, got %d approved and %d refused", approved, refused)
	}
}

func TestLoan_ApproveIsExactlyOnce(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("500"))

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("100"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := e.loanSvc.Approve(ctx, treasurerID, loan.ID, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = e.loanSvc.Approve(ctx, treasurerID, loan.ID, nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second approve must conflict, got %v", err)
	}
}

func TestLoan_RejectNeedsReason(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, treasurerID, memberID := e.seedGroup()

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("100"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := e.loanSvc.Reject(ctx, treasurerID, loan.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty reason must fail validation, got %v", err)
	}

	rejected, err := e.loanSvc.Reject(ctx, treasurerID, loan.ID, "insufficient standing")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.LoanRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "insufficient standing" {
		t.Error("rejection reason must be recorded")
	}
}

func TestLoan_DisburseReducesBalance(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()
	e.seedVerifiedCollection(groupID, memberID, dec("500"))

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("300"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := e.loanSvc.Approve(ctx, treasurerID, loan.ID, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Approved but undisbursed principal does not reduce the available balance.
	available, err := e.balance.Available(ctx, groupID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if !available.Equal(dec("500")) {
		t.Errorf("expected 500 before disbursement, got %s", available)
	}

	disbursed, err := e.loanSvc.Disburse(ctx, treasurerID, loan.ID, DisburseInput{})
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	if disbursed.Status != domain.LoanDisbursed {
		t.Errorf("expected disbursed, got %s", disbursed.Status)
	}

	available, _ = e.balance.Available(ctx, groupID)
	if !available.Equal(dec("200")) {
		t.Errorf("expected 200 after disbursement, got %s", available)
	}
}

func TestLoan_DisburseRequiresApprovedLoan(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, treasurerID, memberID := e.seedGroup()

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("100"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	_, err = e.loanSvc.Disburse(ctx, treasurerID, loan.ID, DisburseInput{})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("disbursing a requested loan must conflict, got %v", err)
	}
}

func TestLoan_RecordRepaymentTransitions(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	groupID, treasurerID, memberID := e.seedGroup()

	approved := dec("400")
	loan := &domain.Loan{
		ID:              uuid.New(),
		Type:            domain.LoanIntraGroup,
		RequesterID:     memberID,
		RequestingGroup: groupID,
		ProvidingGroup:  groupID,
		AmountRequested: dec("400"),
		AmountApproved:  &approved,
		Status:          domain.LoanDisbursed,
	}
	e.loans.rows[loan.ID] = loan

	got, err := e.loanSvc.RecordRepayment(ctx, treasurerID, loan.ID, dec("150"))
	if err != nil {
		t.Fatalf("first repayment: %v", err)
	}
	if got.Status != domain.LoanPartiallyRepaid {
		t.Errorf("expected partially_repaid, got %s", got.Status)
	}

	got, err = e.loanSvc.RecordRepayment(ctx, treasurerID, loan.ID, dec("250"))
	if err != nil {
		t.Fatalf("final repayment: %v", err)
	}
	if got.Status != domain.LoanFullyRepaid {
		t.Errorf("expected fully_repaid, got %s", got.Status)
	}

	repayments, _ := e.loanSvc.Repayments(ctx, treasurerID, loan.ID)
	if len(repayments) != 2 {
		t.Errorf("expected 2 repayment entries, got %d", len(repayments))
	}
}

func TestLoan_LifecycleActionsRequireProviderManager(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_, _, memberID := e.seedGroup()

	loan, err := e.loanSvc.Request(ctx, memberID, RequestLoanInput{
		Type:    domain.LoanIntraGroup,
		Amount:  dec("100"),
		DueDate: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := e.loanSvc.Approve(ctx, memberID, loan.ID, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("approve by plain member: expected unauthorized, got %v", err)
	}
	if _, err := e.loanSvc.Reject(ctx, memberID, loan.ID, "no"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("reject by plain member: expected unauthorized, got %v", err)
	}
	if _, err := e.loanSvc.Disburse(ctx, memberID, loan.ID, DisburseInput{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("disburse by plain member: expected unauthorized, got %v", err)
	}
}

// seedOtherGroup creates a second group with its own treasurer and member.
func (e *env) seedOtherGroup() (groupID, treasurerID, memberID uuid.UUID) {
	g := &domain.Group{
		ID:                    uuid.New(),
		Name:                  "Thesis Group B",
		InviteCode:            "efgh5678",
		MaxIntraLoanPerMember: dec("500"),
		MaxInterLoanLimit:     dec("2000"),
		IntraLoanFee:          decimal.Zero,
	}
	e.groups.mu.Lock()
	e.groups.groups[g.ID] = g
	e.groups.mu.Unlock()

	treasurerID = e.groups.addMember(&g.ID, domain.RoleTreasurer)
	memberID = e.groups.addMember(&g.ID, domain.RoleMember)
	return g.ID, treasurerID, memberID
}
