package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/tests/testutil"
)

func TestConcurrentBookings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, auditTrail := testDB.NewLedgerStack()

	const workers = 10
	amount := decimal.NewFromInt(100)

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := domain.Human{UserID: fmt.Sprintf("clerk-%d", n)}
			_, err := ledger.Book(ctx, testutil.BalancedTransaction(fmt.Sprintf("concurrent booking %d", n), amount), actor)
			if err != nil {
				errs <- fmt.Errorf("worker %d: %w", n, err)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// Every booking landed and the invariant held throughout
	tb, err := ledger.TrialBalance(ctx)
	if err != nil {
		t.Fatalf("failed to get trial balance: %v", err)
	}
	want := amount.Mul(decimal.NewFromInt(workers))
	if !tb.TotalDebit.Equal(want) {
		t.Errorf("expected total debit %s, got %s", want, tb.TotalDebit)
	}
	if !tb.Balanced() {
		t.Errorf("expected balanced trial balance, got debit %s credit %s", tb.TotalDebit, tb.TotalCredit)
	}

	report, err := ledger.VerifyIntegrity(ctx, nil)
	if err != nil {
		t.Fatalf("failed to verify integrity: %v", err)
	}
	if !report.Valid || report.Checked != workers {
		t.Errorf("expected %d valid transactions, checked %d, violations %v", workers, report.Checked, report.Violations)
	}

	// The audit chain stayed gap-free under concurrency
	chain, err := auditTrail.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("failed to verify chain: %v", err)
	}
	if !chain.Valid {
		t.Errorf("expected valid audit chain, first break at %v", chain.FirstBreakSeq)
	}
	if chain.EntriesChecked != workers {
		t.Errorf("expected %d audit entries, got %d", workers, chain.EntriesChecked)
	}
}

func TestConcurrentStornosSingleWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, _ := testDB.NewLedgerStack()

	amount := decimal.NewFromInt(250)
	result, err := ledger.Book(ctx, testutil.BalancedTransaction("duplicate invoice", amount), domain.Human{UserID: "clerk-1"})
	if err != nil {
		t.Fatalf("failed to book: %v", err)
	}
	originalID := result.Transaction.ID

	const workers = 8
	var wg sync.WaitGroup
	var reversed, refused atomic.Int64
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := domain.Human{UserID: fmt.Sprintf("clerk-%d", n)}
			_, err := ledger.Storno(ctx, originalID, actor, "booked twice")
			switch {
			case err == nil:
				reversed.Add(1)
			case errors.Is(err, domain.ErrAlreadyReversed):
				refused.Add(1)
			default:
				errs <- fmt.Errorf("worker %d: %w", n, err)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if reversed.Load() != 1 {
		t.Errorf("expected exactly one reversal to land, got %d", reversed.Load())
	}
	if refused.Load() != workers-1 {
		t.Errorf("expected %d reversals refused, got %d", workers-1, refused.Load())
	}

	// One original plus one reversal, netting to zero per konto
	tb, err := ledger.TrialBalance(ctx)
	if err != nil {
		t.Fatalf("failed to get trial balance: %v", err)
	}
	for _, kb := range tb.Kontos {
		if !kb.Net().IsZero() {
			t.Errorf("konto %s expected zero net, got %s", kb.Konto, kb.Net())
		}
	}

	report, err := ledger.VerifyIntegrity(ctx, nil)
	if err != nil {
		t.Fatalf("failed to verify integrity: %v", err)
	}
	if !report.Valid || report.Checked != 2 {
		t.Errorf("expected 2 valid transactions, checked %d, violations %v", report.Checked, report.Violations)
	}
}
