package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/tests/testutil"
)

func TestVerifyIntegrityPagesThroughLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, _ := testDB.NewLedgerStack(testutil.WithPageSize(2))
	actor := domain.Human{UserID: "mkovac"}

	for i := 0; i < 5; i++ {
		if _, err := ledger.Book(ctx, testutil.BalancedTransaction("batch booking", decimal.NewFromInt(int64(10+i))), actor); err != nil {
			t.Fatalf("failed to book: %v", err)
		}
	}

	report, err := ledger.VerifyIntegrity(ctx, nil)
	if err != nil {
		t.Fatalf("failed to verify first page: %v", err)
	}

	pages := 1
	for !report.Complete {
		if report.Cursor == nil {
			t.Fatal("expected cursor on incomplete page")
		}
		report, err = ledger.VerifyIntegrity(ctx, report.Cursor)
		if err != nil {
			t.Fatalf("failed to verify page %d: %v", pages+1, err)
		}
		pages++
	}

	if pages < 3 {
		t.Errorf("expected at least 3 pages with page size 2, got %d", pages)
	}
	if !report.Valid {
		t.Errorf("expected valid ledger, violations: %v", report.Violations)
	}
	if report.Checked != 5 {
		t.Errorf("expected 5 transactions checked, got %d", report.Checked)
	}
}

func TestVerifyIntegrityDetectsTamperedAmount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, _ := testDB.NewLedgerStack()
	actor := domain.Human{UserID: "mkovac"}

	booked, err := ledger.Book(ctx, testutil.BalancedTransaction("to be tampered", decimal.NewFromInt(100)), actor)
	if err != nil {
		t.Fatalf("failed to book: %v", err)
	}

	// Out-of-band edit of one entry amount
	_, err = testDB.Pool.Exec(ctx,
		`UPDATE entries SET amount = 999.00 WHERE transaction_id = $1 AND side = 'debit'`,
		booked.Transaction.ID)
	if err != nil {
		t.Fatalf("failed to tamper with entry: %v", err)
	}

	report, err := ledger.VerifyIntegrity(ctx, nil)
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if report.Valid {
		t.Fatal("expected integrity check to fail after tampering")
	}

	// Both the balance and the fingerprint check catch the edit
	var unbalanced, mismatch bool
	for _, v := range report.Violations {
		if strings.Contains(v, "unbalanced") {
			unbalanced = true
		}
		if strings.Contains(v, "fingerprint") {
			mismatch = true
		}
	}
	if !unbalanced || !mismatch {
		t.Errorf("expected unbalanced and fingerprint violations, got %v", report.Violations)
	}
}

func TestVerifyIntegrityCountsReversedTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, _ := testDB.NewLedgerStack()
	actor := domain.Human{UserID: "mkovac"}

	booked, err := ledger.Book(ctx, testutil.BalancedTransaction("original", decimal.NewFromInt(30)), actor)
	if err != nil {
		t.Fatalf("failed to book: %v", err)
	}
	if _, err := ledger.Storno(ctx, booked.Transaction.ID, actor, "undo"); err != nil {
		t.Fatalf("failed to storno: %v", err)
	}

	// Both the reversed original and the reversal are part of the scan,
	// otherwise the running totals would not reconcile with konto_totals.
	report, err := ledger.VerifyIntegrity(ctx, nil)
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if !report.Valid {
		t.Errorf("expected valid ledger, violations: %v", report.Violations)
	}
	if report.Checked != 2 {
		t.Errorf("expected 2 transactions checked, got %d", report.Checked)
	}
}
