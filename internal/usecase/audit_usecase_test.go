package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
	"github.com/vblaha/saldo/internal/usecase/mocks"
)

func newAuditTrail() (*usecase.AuditTrail, *mocks.MockAuditRepository) {
	repo := mocks.NewMockAuditRepository()
	trail := usecase.NewAuditTrail(
		mocks.NewMockTransactionManager(),
		repo,
		mocks.NewMockIDGenerator(),
		zerolog.Nop(),
		nil,
	)
	return trail, repo
}

func TestAuditTrail_LogChains(t *testing.T) {
	trail, _ := newAuditTrail()
	ctx := context.Background()

	first, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionBooking, "ledger", "booked 1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := trail.Log(ctx, domain.AutomatedSystem{Name: "bank-import"}, domain.ActionBooking, "ledger", "booked 2", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("expected seq 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
	if first.PrevFingerprint != domain.GenesisFingerprint {
		t.Errorf("expected genesis prev fingerprint, got %s", first.PrevFingerprint)
	}
	if second.PrevFingerprint != first.Fingerprint {
		t.Error("expected second entry to link the first")
	}
	if first.Fingerprint != first.ComputeFingerprint() {
		t.Error("stored fingerprint differs from recomputation")
	}
}

func TestAuditTrail_RiskClassification(t *testing.T) {
	trail, _ := newAuditTrail()
	ctx := context.Background()

	human, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionBooking, "ledger", "booked", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if human.Risk != domain.RiskLow {
		t.Errorf("expected low risk for human booking, got %s", human.Risk)
	}

	system, err := trail.Log(ctx, domain.AutomatedSystem{Name: "ocr"}, domain.ActionBooking, "ledger", "booked", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system.Risk != domain.RiskMedium {
		t.Errorf("expected medium risk for automated booking, got %s", system.Risk)
	}

	// An explicit risk level is never overridden.
	explicit, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionBooking, "ledger", "booked", domain.RiskCritical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explicit.Risk != domain.RiskCritical {
		t.Errorf("expected critical risk preserved, got %s", explicit.Risk)
	}
}

func TestAuditTrail_VerifyChain(t *testing.T) {
	trail, _ := newAuditTrail()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionBooking, "ledger", "booked", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	report, err := trail.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Valid {
		t.Fatal("expected valid chain")
	}
	if report.EntriesChecked != 10 {
		t.Errorf("expected 10 entries checked, got %d", report.EntriesChecked)
	}
	if report.FirstBreakSeq != nil {
		t.Errorf("expected no break, got seq %d", *report.FirstBreakSeq)
	}
}

func TestAuditTrail_VerifyChainEmpty(t *testing.T) {
	trail, _ := newAuditTrail()

	report, err := trail.VerifyChain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Valid || report.EntriesChecked != 0 {
		t.Errorf("expected valid empty report, got %+v", report)
	}
}

func TestAuditTrail_VerifyChainDetectsTampering(t *testing.T) {
	trail, repo := newAuditTrail()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionBooking, "ledger", "booked", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Out-of-band edit of a middle entry.
	repo.Tamper(3, "altered details")

	report, err := trail.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Valid {
		t.Fatal("expected tampering to be detected")
	}
	if report.FirstBreakSeq == nil || *report.FirstBreakSeq != 3 {
		t.Fatalf("expected first break at seq 3, got %+v", report.FirstBreakSeq)
	}
	if report.EntriesChecked != 3 {
		t.Errorf("expected walk to stop at the break, checked %d", report.EntriesChecked)
	}
}

// committedAuditStore serves chain reads from committed state only. Entries
// appended inside a database transaction stay invisible to other writers
// until that transaction commits, the visibility the SQL store gives
// concurrent connections. Commit rejects a seq that already landed, like the
// primary key on audit_entries does.
type committedAuditStore struct {
	mu        sync.Mutex
	committed []*domain.AuditEntry
	pending   map[usecase.Transaction][]*domain.AuditEntry
}

func newCommittedAuditStore() *committedAuditStore {
	return &committedAuditStore{pending: make(map[usecase.Transaction][]*domain.AuditEntry)}
}

func (s *committedAuditStore) append(tx usecase.Transaction, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *e
	s.pending[tx] = append(s.pending[tx], &copied)
	return nil
}

func (s *committedAuditStore) last(tx usecase.Transaction) (*domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.pending[tx]; len(p) > 0 {
		copied := *p[len(p)-1]
		return &copied, nil
	}
	if len(s.committed) == 0 {
		return nil, nil
	}
	copied := *s.committed[len(s.committed)-1]
	return &copied, nil
}

func (s *committedAuditStore) commit(tx usecase.Transaction) error {
	// Widen the window between append and commit.
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.pending[tx] {
		for _, c := range s.committed {
			if c.Seq == e.Seq {
				return fmt.Errorf("duplicate key value violates unique constraint \"audit_entries_pkey\" (seq %d)", e.Seq)
			}
		}
		s.committed = append(s.committed, e)
	}
	delete(s.pending, tx)
	return nil
}

func (s *committedAuditStore) rollback(tx usecase.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, tx)
	return nil
}

func (s *committedAuditStore) snapshot() []*domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.AuditEntry, len(s.committed))
	copy(out, s.committed)
	return out
}

func TestAuditTrail_ConcurrentWritersKeepSeqGapFree(t *testing.T) {
	store := newCommittedAuditStore()

	repo := mocks.NewMockAuditRepository()
	repo.AppendFunc = func(ctx context.Context, tx usecase.Transaction, e *domain.AuditEntry) error {
		return store.append(tx, e)
	}
	repo.LastFunc = func(ctx context.Context, tx usecase.Transaction) (*domain.AuditEntry, error) {
		return store.last(tx)
	}

	txMgr := mocks.NewMockTransactionManager()
	txMgr.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
		tx := &mocks.MockTransaction{}
		tx.CommitFunc = func(ctx context.Context) error { return store.commit(tx) }
		tx.RollbackFunc = func(ctx context.Context) error { return store.rollback(tx) }
		return tx, nil
	}

	idGen := mocks.NewMockIDGenerator()
	trail := usecase.NewAuditTrail(txMgr, repo, idGen, zerolog.Nop(), nil)
	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager:    txMgr,
		Transactions: mocks.NewMockTransactionRepository(),
		Proposals:    mocks.NewMockProposalRepository(),
		Balances:     mocks.NewMockBalanceRepository(),
		Audit:        trail,
		IDGen:        idGen,
		Logger:       zerolog.Nop(),
	})

	// Bookings write audit entries inside the ledger's transaction while
	// standalone entries go through Log; both race for the next seq.
	const pairs = 10
	var wg sync.WaitGroup
	errs := make(chan error, pairs*2)
	for i := 0; i < pairs; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := uc.Book(context.Background(), balancedTransaction(), domain.Human{UserID: "mkovac"}); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := trail.Log(context.Background(), domain.Human{UserID: "mkovac"}, domain.ActionExport, "ledger", "exported", ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	entries := store.snapshot()
	if len(entries) != pairs*2 {
		t.Fatalf("expected %d committed entries, got %d", pairs*2, len(entries))
	}
	prev := domain.GenesisFingerprint
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Fatalf("expected seq %d at position %d, got %d", i+1, i, e.Seq)
		}
		if e.PrevFingerprint != prev {
			t.Errorf("entry %d does not link its predecessor", e.Seq)
		}
		prev = e.Fingerprint
	}
}

func TestAuditTrail_Query(t *testing.T) {
	trail, _ := newAuditTrail()
	ctx := context.Background()

	if _, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionBooking, "ledger", "booked", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := trail.Log(ctx, domain.AutomatedSystem{Name: "ocr"}, domain.ActionAutomatedProposal, "ledger", "proposed", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := trail.Log(ctx, domain.Human{UserID: "mkovac"}, domain.ActionExport, "ledger", "exported", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byActor, err := trail.Query(ctx, domain.AuditFilter{ActorRef: "human:mkovac"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byActor) != 2 {
		t.Errorf("expected 2 entries for human:mkovac, got %d", len(byActor))
	}

	byRisk, err := trail.Query(ctx, domain.AuditFilter{Risk: domain.RiskMedium})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byRisk) != 2 {
		t.Errorf("expected 2 medium-risk entries, got %d", len(byRisk))
	}
}
