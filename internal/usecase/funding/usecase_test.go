package funding

import (
	"context"
	"errors"
	"sync"
	"testing"

	domainFunding "microfi-backend/internal/domain/funding"
	domainLoan "microfi-backend/internal/domain/loan"
	"microfi-backend/internal/testutil/memstore"
	"microfi-backend/pkg/id"
)

func seedLoan(t *testing.T, store *memstore.Store, principal float64) *domainLoan.Loan {
	t.Helper()
	l := &domainLoan.Loan{
		LoanID:          id.NewID32(),
		BorrowerAddress: "Borrower111111111111111111",
		Principal:       principal,
		RatePct:         10,
		DurationMonths:  12,
		Status:          domainLoan.StatusRequested,
	}
	if err := store.Loans().Create(context.Background(), l); err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return l
}

func TestContributePartialThenFull(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)
	l := seedLoan(t, store, 200)

	var hooked []string
	uc.SetFullyFundedHook(func(loanID string) { hooked = append(hooked, loanID) })

	first, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID:        l.LoanID,
		LenderAddress: "LenderA11111111111111111",
		Amount:        150,
	})
	if err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	if first.LoanStatus != string(domainLoan.StatusPartiallyFunded) {
		t.Fatalf("status after 150/200 = %s, want partially_funded", first.LoanStatus)
	}
	if first.FundedAmount != 150 {
		t.Fatalf("funded = %v, want 150", first.FundedAmount)
	}
	if len(hooked) != 0 {
		t.Fatalf("hook fired before full funding")
	}

	second, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID:        l.LoanID,
		LenderAddress: "LenderB11111111111111111",
		Amount:        50,
	})
	if err != nil {
		t.Fatalf("second contribution: %v", err)
	}
	if second.LoanStatus != string(domainLoan.StatusFullyFunded) {
		t.Fatalf("status after 200/200 = %s, want fully_funded", second.LoanStatus)
	}
	if second.FundedAmount != 200 {
		t.Fatalf("funded = %v, want exactly principal", second.FundedAmount)
	}
	if len(hooked) != 1 || hooked[0] != l.LoanID {
		t.Fatalf("hook calls = %v, want exactly one for %s", hooked, l.LoanID)
	}
}

func TestContributeOverfundRejectedInFull(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)
	l := seedLoan(t, store, 200)

	if _, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID: l.LoanID, LenderAddress: "LenderA11111111111111111", Amount: 150,
	}); err != nil {
		t.Fatalf("setup contribution: %v", err)
	}

	// 150 already in; another 150 would exceed 200. No partial fill.
	_, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID: l.LoanID, LenderAddress: "LenderB11111111111111111", Amount: 150,
	})
	if !errors.Is(err, domainFunding.ErrOverfund) {
		t.Fatalf("err = %v, want ErrOverfund", err)
	}

	got, err := store.Loans().GetByLoanID(context.Background(), l.LoanID)
	if err != nil {
		t.Fatalf("reload loan: %v", err)
	}
	if got.FundedAmount != 150 {
		t.Fatalf("funded = %v after rejected overfund, want 150 untouched", got.FundedAmount)
	}
	sum, _ := store.Repos().Contributions.SumByLoanID(context.Background(), l.ID)
	if sum != 150 {
		t.Fatalf("contribution sum = %v, want 150 (rejected one not persisted)", sum)
	}
}

func TestContributeExactRemainingAccepted(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)
	l := seedLoan(t, store, 200)

	if _, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID: l.LoanID, LenderAddress: "LenderA11111111111111111", Amount: 150,
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dto, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID: l.LoanID, LenderAddress: "LenderB11111111111111111", Amount: 50,
	})
	if err != nil {
		t.Fatalf("exact-remaining contribution: %v", err)
	}
	if dto.LoanStatus != string(domainLoan.StatusFullyFunded) {
		t.Fatalf("status = %s, want fully_funded", dto.LoanStatus)
	}
}

func TestContributeRejectsNonFundableLoan(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)

	for _, status := range []domainLoan.Status{
		domainLoan.StatusFullyFunded,
		domainLoan.StatusDisbursing,
		domainLoan.StatusActive,
		domainLoan.StatusCompleted,
		domainLoan.StatusDefaulted,
	} {
		l := seedLoan(t, store, 200)
		l.Status = status
		if err := store.Loans().Save(context.Background(), l); err != nil {
			t.Fatalf("set status: %v", err)
		}
		_, err := uc.Contribute(context.Background(), ContributeInput{
			LoanID: l.LoanID, LenderAddress: "LenderA11111111111111111", Amount: 10,
		})
		if !errors.Is(err, domainFunding.ErrNotFundable) {
			t.Fatalf("status %s: err = %v, want ErrNotFundable", status, err)
		}
	}
}

func TestContributeRejectsBadInput(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)
	l := seedLoan(t, store, 200)

	cases := []ContributeInput{
		{LoanID: l.LoanID, LenderAddress: "LenderA11111111111111111", Amount: 0},
		{LoanID: l.LoanID, LenderAddress: "LenderA11111111111111111", Amount: -5},
		{LoanID: "", LenderAddress: "LenderA11111111111111111", Amount: 10},
		{LoanID: l.LoanID, LenderAddress: "", Amount: 10},
	}
	for i, in := range cases {
		if _, err := uc.Contribute(context.Background(), in); !errors.Is(err, domainFunding.ErrInvalidAmount) {
			t.Fatalf("case %d: err = %v, want ErrInvalidAmount", i, err)
		}
	}
}

func TestContributeUnknownLoan(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)

	_, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID: "deadbeefdeadbeefdeadbeefdeadbeef", LenderAddress: "LenderA11111111111111111", Amount: 10,
	})
	if !errors.Is(err, domainLoan.ErrNotFound) {
		t.Fatalf("err = %v, want loan.ErrNotFound", err)
	}
}

func TestConcurrentContributionsNeverOverfund(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)
	l := seedLoan(t, store, 100)

	var fullyFunded int
	var hookMu sync.Mutex
	uc.SetFullyFundedHook(func(string) {
		hookMu.Lock()
		fullyFunded++
		hookMu.Unlock()
	})

	// 20 lenders racing with 10 each against capacity 100: exactly 10
	// contributions land, the rest are rejected whole.
	const workers = 20
	var wg sync.WaitGroup
	accepted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Contribute(context.Background(), ContributeInput{
				LoanID:        l.LoanID,
				LenderAddress: "LenderRace111111111111111",
				Amount:        10,
			})
			if err == nil {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	var n int
	for range accepted {
		n++
	}
	if n != 10 {
		t.Fatalf("accepted %d contributions, want 10", n)
	}

	got, _ := store.Loans().GetByLoanID(context.Background(), l.LoanID)
	if got.FundedAmount != got.Principal {
		t.Fatalf("funded = %v, want exactly %v", got.FundedAmount, got.Principal)
	}
	if got.Status != domainLoan.StatusFullyFunded {
		t.Fatalf("status = %s, want fully_funded", got.Status)
	}
	if fullyFunded != 1 {
		t.Fatalf("fully funded hook fired %d times, want 1", fullyFunded)
	}
	sum, _ := store.Repos().Contributions.SumByLoanID(context.Background(), l.ID)
	if sum != 100 {
		t.Fatalf("contribution sum = %v, want 100", sum)
	}
}

func TestContributeRepairsDriftedFundedAmount(t *testing.T) {
	store := memstore.New()
	uc := NewUsecase(store, nil)
	l := seedLoan(t, store, 200)

	// Inflate the running total past what the contribution rows support.
	l.FundedAmount = 200
	l.Status = domainLoan.StatusPartiallyFunded
	if err := store.Loans().Save(context.Background(), l); err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	// The rows sum to 0, so 150 fits; the stale total must not reject it.
	dto, err := uc.Contribute(context.Background(), ContributeInput{
		LoanID: l.LoanID, LenderAddress: "LenderA11111111111111111", Amount: 150,
	})
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if dto.FundedAmount != 150 {
		t.Fatalf("funded = %v, want 150 after drift repair", dto.FundedAmount)
	}

	got, err := store.Loans().GetByLoanID(context.Background(), l.LoanID)
	if err != nil {
		t.Fatalf("reload loan: %v", err)
	}
	if got.FundedAmount != 150 {
		t.Fatalf("persisted funded = %v, want 150", got.FundedAmount)
	}
}
