package usecase

import (
	"context"
	"time"

	"github.com/vblaha/saldo/internal/domain"
)

// TransactionRepository defines data access for the booked sequence.
// Booked rows are append-only: there is no update or delete beyond the
// status flag set by storno.
type TransactionRepository interface {
	// Append stores a booked transaction and returns its assigned
	// monotonically increasing id.
	Append(ctx context.Context, tx Transaction, t *domain.Transaction) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// MarkReversed flags the original transaction after its storno booked.
	// Entries and content fields are never touched. The transition applies
	// only to a still-booked row; anything else returns ErrAlreadyReversed
	// so a racing second storno fails inside its database transaction.
	MarkReversed(ctx context.Context, tx Transaction, id int64) error
	// ListBooked returns booked transactions with id greater than afterID,
	// in id order, at most limit rows. Used by the paged integrity scan.
	ListBooked(ctx context.Context, afterID int64, limit int) ([]*domain.Transaction, error)
}

// ProposalRepository defines data access for proposed transactions.
type ProposalRepository interface {
	Create(ctx context.Context, tx Transaction, t *domain.Transaction) error
	GetByID(ctx context.Context, proposalID string) (*domain.Transaction, error)
	// UpdateStatus transitions a proposal out of the open state. It applies
	// only to a still-proposed row; anything else returns ErrProposalClosed
	// so racing approvals or rejections fail inside their transactions.
	UpdateStatus(ctx context.Context, tx Transaction, proposalID string, status domain.TransactionStatus) error
	ListOpen(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

// BalanceRepository maintains the running per-konto debit/credit totals.
type BalanceRepository interface {
	ApplyEntries(ctx context.Context, tx Transaction, entries []domain.Entry) error
	TrialBalance(ctx context.Context) (*domain.TrialBalance, error)
}

// AuditRepository defines data access for the append-only audit chain.
type AuditRepository interface {
	// Append stores a fully formed entry (seq, fingerprints computed by the
	// caller). This is the only write; there is no update or delete.
	Append(ctx context.Context, tx Transaction, e *domain.AuditEntry) error
	// Last returns the newest entry, or nil when the chain is empty. A
	// non-nil tx reads within the caller's database transaction so that an
	// uncommitted append is visible to its own chain computation.
	Last(ctx context.Context, tx Transaction) (*domain.AuditEntry, error)
	// List returns entries with seq greater than afterSeq, in seq order, at
	// most limit rows.
	List(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error)
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}

// AnomalyChecker is the advisory detector consulted on the booking path.
type AnomalyChecker interface {
	Check(ctx context.Context, t *domain.Transaction) ([]domain.Anomaly, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs for proposals and audit entries.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation after transient storage failures. Operations
// passed to it must be safe to run again from the top.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
