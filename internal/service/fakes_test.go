package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeTx serializes transactions with a mutex, which is exactly what the row
// locks give the real services: concurrent mutations of one group run one
// after another.
type fakeTx struct {
	mu sync.Mutex
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

type fakeGroups struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]*domain.Group
	members map[uuid.UUID]*domain.Member
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{
		groups:  make(map[uuid.UUID]*domain.Group),
		members: make(map[uuid.UUID]*domain.Member),
	}
}

func (f *fakeGroups) Create(ctx context.Context, g *domain.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.groups {
		if existing.InviteCode == g.InviteCode {
			return domain.Conflictf("invite code %q already taken", g.InviteCode)
		}
	}
	cp := *g
	f.groups[g.ID] = &cp
	return nil
}

func (f *fakeGroups) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, domain.NotFoundf("group not found")
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGroups) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeGroups) GetByInviteCode(ctx context.Context, code string) (*domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.InviteCode == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("group not found")
}

func (f *fakeGroups) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, domain.NotFoundf("member not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeGroups) CreateMember(ctx context.Context, m *domain.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.members[m.ID] = &cp
	return nil
}

func (f *fakeGroups) SetMemberGroup(ctx context.Context, memberID, groupID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok {
		return domain.NotFoundf("member not found")
	}
	gid := groupID
	m.GroupID = &gid
	return nil
}

func (f *fakeGroups) SetMemberRole(ctx context.Context, memberID uuid.UUID, role domain.Role, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok {
		return domain.NotFoundf("member not found")
	}
	m.Role = role
	return nil
}

func (f *fakeGroups) CountActiveMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	members, _ := f.ListActiveMembers(ctx, groupID)
	return len(members), nil
}

func (f *fakeGroups) ListActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Member
	for _, m := range f.members {
		if m.Active && m.GroupID != nil && *m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeGroups) addMember(groupID *uuid.UUID, role domain.Role) uuid.UUID {
	m := &domain.Member{
		ID:       uuid.New(),
		GroupID:  groupID,
		FullName: "Test Member",
		Role:     role,
		Active:   true,
	}
	f.mu.Lock()
	f.members[m.ID] = m
	f.mu.Unlock()
	return m.ID
}

type fakeObligations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Obligation

	// weeks backs the penalty attach in MarkOverdue, like the SQL join does.
	weeks *fakeWeeks
}

func newFakeObligations() *fakeObligations {
	return &fakeObligations{rows: make(map[uuid.UUID]*domain.Obligation)}
}

func (f *fakeObligations) Create(ctx context.Context, o *domain.Obligation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.MemberID == o.MemberID && existing.Kind == o.Kind && existing.SourceID == o.SourceID {
			return domain.Conflictf("obligation already exists")
		}
	}
	cp := *o
	f.rows[o.ID] = &cp
	return nil
}

func (f *fakeObligations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("obligation not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeObligations) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Obligation, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeObligations) FindContributionForUpdate(ctx context.Context, memberID, weekID uuid.UUID) (*domain.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.MemberID == memberID && o.Kind == domain.KindContribution && o.SourceID == weekID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("obligation not found")
}

func (f *fakeObligations) Save(ctx context.Context, o *domain.Obligation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[o.ID]; !ok {
		return domain.NotFoundf("obligation not found")
	}
	cp := *o
	f.rows[o.ID] = &cp
	return nil
}

func (f *fakeObligations) MarkOverdue(ctx context.Context, groupID uuid.UUID, asOf time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.GroupID != groupID {
			continue
		}
		if o.Overdue(asOf) {
			o.Status = domain.ObligationOverdue
		}
		if o.Status == domain.ObligationOverdue && o.Kind == domain.KindContribution &&
			o.Penalty.IsZero() && o.AmountPaid.IsZero() && f.weeks != nil {
			if w, err := f.weeks.GetByID(ctx, o.SourceID); err == nil {
				o.Penalty = w.Penalty
			}
		}
	}
	return nil
}

func (f *fakeObligations) RevertOverdue(ctx context.Context, groupID uuid.UUID, asOf time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.GroupID == groupID && o.Status == domain.ObligationOverdue &&
			o.DueDate != nil && !o.DueDate.Before(asOf) {
			o.Status = domain.ObligationUnpaid
		}
	}
	return nil
}

func (f *fakeObligations) ListByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Obligation
	for _, o := range f.rows {
		if o.MemberID == memberID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeObligations) ListForExpenseForUpdate(ctx context.Context, expenseID uuid.UUID) ([]domain.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Obligation
	for _, o := range f.rows {
		if o.Kind == domain.KindExpenseShare && o.SourceID == expenseID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeObligations) DeleteWithAllocations(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

type fakePayments struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*domain.Payment
	allocations []domain.Allocation
}

func newFakePayments() *fakePayments {
	return &fakePayments{rows: make(map[uuid.UUID]*domain.Payment)}
}

func (f *fakePayments) Create(ctx context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePayments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("payment not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) CreateAllocation(ctx context.Context, a *domain.Allocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocations = append(f.allocations, *a)
	return nil
}

func (f *fakePayments) Allocations(ctx context.Context, paymentID uuid.UUID) ([]domain.Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Allocation
	for _, a := range f.allocations {
		if a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakePayments) HasActiveForObligation(ctx context.Context, memberID, obligationID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.allocations {
		if a.ObligationID != obligationID {
			continue
		}
		p := f.rows[a.PaymentID]
		if p != nil && p.PayerID == memberID && p.Status != domain.PaymentRejected {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePayments) MarkVerified(ctx context.Context, id, verifierID uuid.UUID, notes *string, at time.Time) (bool, error) {
	return f.resolve(id, verifierID, notes, at, domain.PaymentVerified)
}

func (f *fakePayments) MarkRejected(ctx context.Context, id, verifierID uuid.UUID, notes *string, at time.Time) (bool, error) {
	return f.resolve(id, verifierID, notes, at, domain.PaymentRejected)
}

func (f *fakePayments) resolve(id, verifierID uuid.UUID, notes *string, at time.Time, to domain.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.Status != domain.PaymentPendingVerify {
		return false, nil
	}
	p.Status = to
	p.VerifierID = &verifierID
	p.VerifiedAt = &at
	p.Notes = notes
	return true, nil
}

func (f *fakePayments) SumVerifiedByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, p := range f.rows {
		if p.GroupID == groupID && p.Status == domain.PaymentVerified && p.Purpose != domain.PurposeLoanRepay {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

type fakeLoans struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*domain.Loan
	repayments []domain.LoanRepayment
}

func newFakeLoans() *fakeLoans {
	return &fakeLoans{rows: make(map[uuid.UUID]*domain.Loan)}
}

func (f *fakeLoans) Create(ctx context.Context, l *domain.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *l
	f.rows[l.ID] = &cp
	return nil
}

func (f *fakeLoans) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("loan not found")
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLoans) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeLoans) HasOpenForMember(ctx context.Context, memberID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.RequesterID == memberID && !l.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLoans) HasOpenBetweenGroups(ctx context.Context, a, b uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.Type != domain.LoanInterGroup || l.Status.Terminal() {
			continue
		}
		if (l.RequestingGroup == a && l.ProvidingGroup == b) || (l.RequestingGroup == b && l.ProvidingGroup == a) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLoans) Approve(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.Status != domain.LoanRequested {
		return false, nil
	}
	l.Status = domain.LoanApproved
	l.AmountApproved = &amount
	l.ApprovedAt = &at
	return true, nil
}

func (f *fakeLoans) Reject(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.Status != domain.LoanRequested {
		return false, nil
	}
	l.Status = domain.LoanRejected
	l.RejectionReason = &reason
	l.RejectedAt = &at
	return true, nil
}

func (f *fakeLoans) MarkDisbursed(ctx context.Context, id uuid.UUID, proofURL, externalRef *string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.Status != domain.LoanApproved {
		return false, nil
	}
	l.Status = domain.LoanDisbursed
	l.DisburseProofURL = proofURL
	l.DisburseRef = externalRef
	l.DisbursedAt = &at
	return true, nil
}

func (f *fakeLoans) SaveRepaymentState(ctx context.Context, l *domain.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[l.ID]
	if !ok {
		return domain.NotFoundf("loan not found")
	}
	stored.TotalRepaid = l.TotalRepaid
	stored.Status = l.Status
	return nil
}

func (f *fakeLoans) CreateRepayment(ctx context.Context, rp *domain.LoanRepayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repayments = append(f.repayments, *rp)
	return nil
}

func (f *fakeLoans) ListRepayments(ctx context.Context, loanID uuid.UUID) ([]domain.LoanRepayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LoanRepayment
	for _, rp := range f.repayments {
		if rp.LoanID == loanID {
			out = append(out, rp)
		}
	}
	return out, nil
}

func (f *fakeLoans) OutstandingPrincipal(ctx context.Context, providingGroup uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, l := range f.rows {
		if l.ProvidingGroup != providingGroup {
			continue
		}
		if l.Status == domain.LoanDisbursed || l.Status == domain.LoanPartiallyRepaid {
			sum = sum.Add(l.Outstanding())
		}
	}
	return sum, nil
}

func (f *fakeLoans) ApprovedPrincipal(ctx context.Context, providingGroup uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, l := range f.rows {
		if l.ProvidingGroup == providingGroup && l.Status == domain.LoanApproved && l.AmountApproved != nil {
			sum = sum.Add(*l.AmountApproved)
		}
	}
	return sum, nil
}

type fakeExpenses struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Expense
}

func newFakeExpenses() *fakeExpenses {
	return &fakeExpenses{rows: make(map[uuid.UUID]*domain.Expense)}
}

func (f *fakeExpenses) Create(ctx context.Context, e *domain.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.rows[e.ID] = &cp
	return nil
}

func (f *fakeExpenses) GetByID(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("expense not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExpenses) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeExpenses) SetDistribution(ctx context.Context, id uuid.UUID, share *decimal.Decimal, distributed bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return domain.NotFoundf("expense not found")
	}
	e.PerMemberShare = share
	e.IsDistributed = distributed
	return nil
}

func (f *fakeExpenses) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return domain.NotFoundf("expense not found")
	}
	e.Amount = amount
	return nil
}

func (f *fakeExpenses) SumByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, e := range f.rows {
		if e.GroupID == groupID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

type fakeDues struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Due
}

func newFakeDues() *fakeDues {
	return &fakeDues{rows: make(map[uuid.UUID]*domain.Due)}
}

func (f *fakeDues) Create(ctx context.Context, d *domain.Due) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.rows[d.ID] = &cp
	return nil
}

func (f *fakeDues) GetByID(ctx context.Context, id uuid.UUID) (*domain.Due, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("due not found")
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDues) ListOpenByGroup(ctx context.Context, groupID uuid.UUID, asOf time.Time) ([]domain.Due, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Due
	for _, d := range f.rows {
		if d.GroupID == groupID && !d.DueDate.Before(asOf) {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeWeeks struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.ContributionWeek
}

func newFakeWeeks() *fakeWeeks {
	return &fakeWeeks{rows: make(map[uuid.UUID]*domain.ContributionWeek)}
}

func (f *fakeWeeks) Create(ctx context.Context, w *domain.ContributionWeek) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.GroupID == w.GroupID && existing.StartDate.Equal(w.StartDate) {
			return domain.Conflictf("week already exists")
		}
	}
	cp := *w
	f.rows[w.ID] = &cp
	return nil
}

func (f *fakeWeeks) GetByID(ctx context.Context, id uuid.UUID) (*domain.ContributionWeek, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("contribution week not found")
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWeeks) FindByStart(ctx context.Context, groupID uuid.UUID, start time.Time) (*domain.ContributionWeek, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.rows {
		if w.GroupID == groupID && w.StartDate.Equal(start) {
			cp := *w
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("contribution week not found")
}

type fakeStorage struct {
	mu      sync.Mutex
	fail    bool
	uploads []string
}

func (f *fakeStorage) Upload(ctx context.Context, fileName string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("storage unavailable")
	}
	f.uploads = append(f.uploads, fileName)
	return "proofs/" + fileName, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, memberID uuid.UUID, event string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]decimal.Decimal
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID]decimal.Decimal)}
}

func (f *fakeCache) Get(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[groupID]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, groupID uuid.UUID, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[groupID] = balance
	f.sets++
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, groupID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, groupID)
	f.deletes++
	return nil
}

// env bundles the fakes plus fully wired services for ledger tests.
type env struct {
	tx          *fakeTx
	groups      *fakeGroups
	obligations *fakeObligations
	payments    *fakePayments
	loans       *fakeLoans
	expenses    *fakeExpenses
	dues        *fakeDues
	weeks       *fakeWeeks
	storage     *fakeStorage
	notifier    *fakeNotifier
	cache       *fakeCache

	balance    *BalanceService
	ledger     *LedgerService
	loanSvc    *LoanService
	expenseSvc *ExpenseService
	groupSvc   *GroupService
	obligSvc   *ObligationService
}

func newEnv() *env {
	e := &env{
		tx:          &fakeTx{},
		groups:      newFakeGroups(),
		obligations: newFakeObligations(),
		payments:    newFakePayments(),
		loans:       newFakeLoans(),
		expenses:    newFakeExpenses(),
		dues:        newFakeDues(),
		weeks:       newFakeWeeks(),
		storage:     &fakeStorage{},
		notifier:    &fakeNotifier{},
		cache:       newFakeCache(),
	}
	e.obligations.weeks = e.weeks
	e.balance = NewBalanceService(e.groups, e.payments, e.expenses, e.loans, e.cache)
	e.ledger = NewLedgerService(e.tx, e.groups, e.obligations, e.payments, e.loans, e.weeks, e.storage, e.notifier, e.balance)
	e.loanSvc = NewLoanService(e.tx, e.groups, e.loans, e.storage, e.balance)
	e.expenseSvc = NewExpenseService(e.tx, e.groups, e.expenses, e.obligations, e.balance)
	e.groupSvc = NewGroupService(e.tx, e.groups, e.dues, e.obligations)
	e.obligSvc = NewObligationService(e.tx, e.groups, e.obligations, e.weeks, e.dues)
	return e
}

// seedGroup creates a group with a treasurer and one plain member.
func (e *env) seedGroup() (groupID, treasurerID, memberID uuid.UUID) {
	g := &domain.Group{
		ID:                    uuid.New(),
		Name:                  "Thesis Group A",
		InviteCode:            "abcd1234",
		MaxIntraLoanPerMember: dec("500"),
		MaxInterLoanLimit:     dec("2000"),
		IntraLoanFee:          dec("10"),
	}
	e.groups.mu.Lock()
	e.groups.groups[g.ID] = g
	e.groups.mu.Unlock()

	treasurerID = e.groups.addMember(&g.ID, domain.RoleTreasurer)
	memberID = e.groups.addMember(&g.ID, domain.RoleMember)
	return g.ID, treasurerID, memberID
}

// seedVerifiedCollection inserts a verified contribution payment so the group
// has funds.
func (e *env) seedVerifiedCollection(groupID, payerID uuid.UUID, amount decimal.Decimal) {
	p := &domain.Payment{
		ID:      uuid.New(),
		PayerID: payerID,
		GroupID: groupID,
		Amount:  amount,
		Method:  "gcash",
		Purpose: domain.PurposeContribution,
		Status:  domain.PaymentVerified,
	}
	e.payments.mu.Lock()
	e.payments.rows[p.ID] = p
	e.payments.mu.Unlock()
}
