package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/tests/testutil"
)

func TestBookTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, _ := testDB.NewLedgerStack()
	actor := domain.Human{UserID: "mkovac"}

	amount := decimal.NewFromInt(250)
	result, err := ledger.Book(ctx, testutil.BalancedTransaction("office rent march", amount), actor)
	if err != nil {
		t.Fatalf("failed to book transaction: %v", err)
	}
	if result.Transaction.ID == 0 {
		t.Error("expected transaction id to be assigned")
	}
	if result.Transaction.Status != domain.StatusBooked {
		t.Errorf("expected status booked, got %s", result.Transaction.Status)
	}
	if result.Transaction.Fingerprint == "" {
		t.Error("expected fingerprint to be set")
	}

	// Re-read through the repository and compare
	stored, err := ledger.GetTransaction(ctx, result.Transaction.ID)
	if err != nil {
		t.Fatalf("failed to get booked transaction: %v", err)
	}
	if stored.Fingerprint != result.Transaction.Fingerprint {
		t.Errorf("stored fingerprint %s differs from booked %s", stored.Fingerprint, result.Transaction.Fingerprint)
	}
	if recomputed := stored.ComputeFingerprint(); recomputed != stored.Fingerprint {
		t.Errorf("stored transaction does not recompute to its fingerprint: %s != %s", recomputed, stored.Fingerprint)
	}
	if len(stored.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(stored.Entries))
	}
	if !stored.Entries[0].Amount.Equal(amount) {
		t.Errorf("expected entry amount %s, got %s", amount, stored.Entries[0].Amount)
	}

	// Trial balance reflects the booking and stays balanced
	tb, err := ledger.TrialBalance(ctx)
	if err != nil {
		t.Fatalf("failed to get trial balance: %v", err)
	}
	if !tb.Balanced() {
		t.Errorf("expected balanced trial balance, got debit %s credit %s", tb.TotalDebit, tb.TotalCredit)
	}
	if !tb.TotalDebit.Equal(amount) {
		t.Errorf("expected total debit %s, got %s", amount, tb.TotalDebit)
	}
}

func TestBookUnbalancedTransactionPersistsNothing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, auditTrail := testDB.NewLedgerStack()
	actor := domain.Human{UserID: "mkovac"}

	unbalanced := &domain.Transaction{
		Date:        testutil.BalancedTransaction("x", decimal.NewFromInt(1)).Date,
		Description: "off by a cent",
		Entries: []domain.Entry{
			{Konto: "2800", Side: domain.Debit, Amount: decimal.NewFromFloat(100.00)},
			{Konto: "8400", Side: domain.Credit, Amount: decimal.NewFromFloat(99.99)},
		},
	}

	_, err := ledger.Book(ctx, unbalanced, actor)
	var balErr *domain.BalanceError
	if !errors.As(err, &balErr) {
		t.Fatalf("expected BalanceError, got %v", err)
	}

	tb, err := ledger.TrialBalance(ctx)
	if err != nil {
		t.Fatalf("failed to get trial balance: %v", err)
	}
	if !tb.TotalDebit.IsZero() || !tb.TotalCredit.IsZero() {
		t.Errorf("expected empty trial balance, got debit %s credit %s", tb.TotalDebit, tb.TotalCredit)
	}

	report, err := auditTrail.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("failed to verify chain: %v", err)
	}
	if report.EntriesChecked != 0 {
		t.Errorf("expected no audit entries for rejected booking, got %d", report.EntriesChecked)
	}
}

func TestBookOneSidedTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	ledger, _ := testDB.NewLedgerStack()

	oneSided := &domain.Transaction{
		Date:        testutil.BalancedTransaction("x", decimal.NewFromInt(1)).Date,
		Description: "two debits, no credit",
		Entries: []domain.Entry{
			{Konto: "2800", Side: domain.Debit, Amount: decimal.NewFromInt(50)},
			{Konto: "2810", Side: domain.Debit, Amount: decimal.NewFromInt(50)},
		},
	}

	_, err := ledger.Book(ctx, oneSided, domain.Human{UserID: "mkovac"})
	if !errors.Is(err, domain.ErrOneSided) {
		t.Errorf("expected ErrOneSided, got %v", err)
	}
}
