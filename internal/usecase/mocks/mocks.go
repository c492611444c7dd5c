package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
)

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[int64]*domain.Transaction
	nextID       int64

	AppendFunc       func(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) (int64, error)
	GetByIDFunc      func(ctx context.Context, id int64) (*domain.Transaction, error)
	MarkReversedFunc func(ctx context.Context, tx usecase.Transaction, id int64) error
	ListBookedFunc   func(ctx context.Context, afterID int64, limit int) ([]*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[int64]*domain.Transaction),
	}
}

func (m *MockTransactionRepository) Append(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) (int64, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *t
	stored.ID = m.nextID
	m.transactions[stored.ID] = &stored
	return stored.ID, nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transactions[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id int64) error {
	if m.MarkReversedFunc != nil {
		return m.MarkReversedFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok || t.Status != domain.StatusBooked {
		return domain.ErrAlreadyReversed
	}
	t.Status = domain.StatusReversed
	return nil
}

func (m *MockTransactionRepository) ListBooked(ctx context.Context, afterID int64, limit int) ([]*domain.Transaction, error) {
	if m.ListBookedFunc != nil {
		return m.ListBookedFunc(ctx, afterID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Transaction
	for id := afterID + 1; id <= m.nextID && len(result) < limit; id++ {
		if t, ok := m.transactions[id]; ok {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// Tamper overwrites a stored transaction's entries without touching its
// fingerprint, simulating an out-of-band edit.
func (m *MockTransactionRepository) Tamper(id int64, entries []domain.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.transactions[id]; ok {
		t.Entries = entries
	}
}

// MockProposalRepository is a mock implementation of ProposalRepository.
type MockProposalRepository struct {
	mu        sync.RWMutex
	proposals map[string]*domain.Transaction

	CreateFunc       func(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error
	GetByIDFunc      func(ctx context.Context, proposalID string) (*domain.Transaction, error)
	UpdateStatusFunc func(ctx context.Context, tx usecase.Transaction, proposalID string, status domain.TransactionStatus) error
	ListOpenFunc     func(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

func NewMockProposalRepository() *MockProposalRepository {
	return &MockProposalRepository{
		proposals: make(map[string]*domain.Transaction),
	}
}

func (m *MockProposalRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *t
	m.proposals[stored.ProposalID] = &stored
	return nil
}

func (m *MockProposalRepository) GetByID(ctx context.Context, proposalID string) (*domain.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, proposalID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.proposals[proposalID]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.ErrProposalNotFound
}

func (m *MockProposalRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, proposalID string, status domain.TransactionStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, proposalID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.proposals[proposalID]
	if !ok || t.Status != domain.StatusProposed {
		return domain.ErrProposalClosed
	}
	t.Status = status
	return nil
}

func (m *MockProposalRepository) ListOpen(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	if m.ListOpenFunc != nil {
		return m.ListOpenFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Transaction
	for _, t := range m.proposals {
		if t.Status == domain.StatusProposed {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

// MockBalanceRepository is a mock implementation of BalanceRepository. The
// default accumulates per-konto totals in memory like the real store.
type MockBalanceRepository struct {
	mu     sync.RWMutex
	kontos map[string]*domain.KontoBalance

	ApplyEntriesFunc func(ctx context.Context, tx usecase.Transaction, entries []domain.Entry) error
	TrialBalanceFunc func(ctx context.Context) (*domain.TrialBalance, error)
}

func NewMockBalanceRepository() *MockBalanceRepository {
	return &MockBalanceRepository{
		kontos: make(map[string]*domain.KontoBalance),
	}
}

func (m *MockBalanceRepository) ApplyEntries(ctx context.Context, tx usecase.Transaction, entries []domain.Entry) error {
	if m.ApplyEntriesFunc != nil {
		return m.ApplyEntriesFunc(ctx, tx, entries)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		kb, ok := m.kontos[e.Konto]
		if !ok {
			kb = &domain.KontoBalance{Konto: e.Konto}
			m.kontos[e.Konto] = kb
		}
		if e.Side == domain.Debit {
			kb.Debit = kb.Debit.Add(e.Amount)
		} else {
			kb.Credit = kb.Credit.Add(e.Amount)
		}
	}
	return nil
}

func (m *MockBalanceRepository) TrialBalance(ctx context.Context) (*domain.TrialBalance, error) {
	if m.TrialBalanceFunc != nil {
		return m.TrialBalanceFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tb := &domain.TrialBalance{}
	for _, kb := range m.kontos {
		tb.Kontos = append(tb.Kontos, *kb)
		tb.TotalDebit = tb.TotalDebit.Add(kb.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(kb.Credit)
	}
	return tb, nil
}

// MockAuditRepository is a mock implementation of AuditRepository backed by
// an in-memory slice in seq order.
type MockAuditRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry

	AppendFunc func(ctx context.Context, tx usecase.Transaction, e *domain.AuditEntry) error
	LastFunc   func(ctx context.Context, tx usecase.Transaction) (*domain.AuditEntry, error)
	ListFunc   func(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error)
	QueryFunc  func(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Append(ctx context.Context, tx usecase.Transaction, e *domain.AuditEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *e
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *MockAuditRepository) Last(ctx context.Context, tx usecase.Transaction) (*domain.AuditEntry, error) {
	if m.LastFunc != nil {
		return m.LastFunc(ctx, tx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return nil, nil
	}
	copied := *m.entries[len(m.entries)-1]
	return &copied, nil
}

func (m *MockAuditRepository) List(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, afterSeq, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.AuditEntry
	for _, e := range m.entries {
		if e.Seq > afterSeq && len(result) < limit {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockAuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.AuditEntry
	skipped := 0
	for _, e := range m.entries {
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
		copied := *e
		result = append(result, &copied)
	}
	return result, nil
}

// Len returns the number of stored audit entries.
func (m *MockAuditRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Tamper overwrites the details of the entry at seq without recomputing its
// fingerprint, simulating an out-of-band edit.
func (m *MockAuditRepository) Tamper(seq int64, details string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Seq == seq {
			e.Details = details
			return
		}
	}
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%d", m.counter)
}
