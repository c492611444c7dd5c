package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/infrastructure/metrics"
)

// chainPageSize bounds one verification page so VerifyChain never loads the
// whole trail at once.
const chainPageSize = 500

// AuditTrail is the append-only, hash-chained log of booking decisions.
// Every ledger-affecting action writes exactly one entry; appends are
// serialized so the chain stays gap-free.
type AuditTrail struct {
	// mu is the chain's writer lock. It must be held from before the tail
	// is read until the surrounding database transaction commits; a writer
	// that released it earlier would let a concurrent append read the same
	// committed tail and collide on seq.
	mu        sync.Mutex
	txManager TransactionManager
	repo      AuditRepository
	idGen     IDGenerator
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewAuditTrail creates a new AuditTrail. Metrics may be nil.
func NewAuditTrail(
	txManager TransactionManager,
	repo AuditRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *AuditTrail {
	return &AuditTrail{
		txManager: txManager,
		repo:      repo,
		idGen:     idGen,
		logger:    logger,
		metrics:   m,
		// Truncated to what a timestamptz column round-trips, so stored
		// entries recompute to their stored fingerprint.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Log appends a standalone audit entry in its own database transaction. The
// writer lock is held until that transaction commits, so a standalone entry
// and a concurrent ledger booking never compute the same seq. An empty risk
// level is classified from the action kind and actor variant.
func (at *AuditTrail) Log(
	ctx context.Context,
	actor domain.Actor,
	action domain.ActionKind,
	module, details string,
	risk domain.RiskLevel,
) (*domain.AuditEntry, error) {
	at.mu.Lock()
	defer at.mu.Unlock()

	tx, err := at.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := at.Append(ctx, tx, actor, action, module, details, risk)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

// Append writes one chained entry inside the caller's database transaction,
// so a booking and its audit record commit or roll back together. The caller
// must hold the trail's writer lock until that transaction commits; Log and
// the ledger's withTx do.
func (at *AuditTrail) Append(
	ctx context.Context,
	tx Transaction,
	actor domain.Actor,
	action domain.ActionKind,
	module, details string,
	risk domain.RiskLevel,
) (*domain.AuditEntry, error) {
	if risk == "" {
		risk = domain.ClassifyRisk(action, actor)
	}

	last, err := at.repo.Last(ctx, tx)
	if err != nil {
		return nil, err
	}

	seq := int64(1)
	prev := domain.GenesisFingerprint
	if last != nil {
		seq = last.Seq + 1
		prev = last.Fingerprint
	}

	entry := &domain.AuditEntry{
		ID:              at.idGen.Generate(),
		Seq:             seq,
		Actor:           actor,
		Action:          action,
		Module:          module,
		Details:         details,
		Risk:            risk,
		At:              at.now(),
		PrevFingerprint: prev,
	}
	entry.Fingerprint = entry.ComputeFingerprint()

	if err := at.repo.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if at.metrics != nil {
		at.metrics.AuditEntries.WithLabelValues(string(action), string(risk)).Inc()
	}

	at.logger.Debug().
		Int64("seq", entry.Seq).
		Str("actor", actor.Ref()).
		Str("action", string(action)).
		Str("risk", string(risk)).
		Msg("audit entry appended")

	return entry, nil
}

// ChainReport is the result of a chain verification walk.
type ChainReport struct {
	Valid          bool
	EntriesChecked int
	FirstBreakSeq  *int64
}

// VerifyChain recomputes every fingerprint from the first entry and reports
// the first position, if any, where recomputation diverges from the stored
// value. A break is an integrity alert, not a request error: it is logged
// at error level and counted, never swallowed.
func (at *AuditTrail) VerifyChain(ctx context.Context) (*ChainReport, error) {
	report := &ChainReport{Valid: true}

	prev := domain.GenesisFingerprint
	expectedSeq := int64(1)
	afterSeq := int64(0)

	for {
		page, err := at.repo.List(ctx, afterSeq, chainPageSize)
		if err != nil {
			return nil, err
		}

		for _, entry := range page {
			report.EntriesChecked++

			if entry.Seq != expectedSeq || entry.PrevFingerprint != prev ||
				entry.ComputeFingerprint() != entry.Fingerprint {
				seq := entry.Seq
				report.Valid = false
				report.FirstBreakSeq = &seq
				at.alert(&domain.IntegrityError{
					Reason: "audit chain recomputation mismatch",
					Seq:    seq,
				})
				return report, nil
			}

			prev = entry.Fingerprint
			expectedSeq = entry.Seq + 1
			afterSeq = entry.Seq
		}

		if len(page) < chainPageSize {
			return report, nil
		}
	}
}

// Query returns entries matching the filter in chain order.
func (at *AuditTrail) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return at.repo.Query(ctx, filter)
}

func (at *AuditTrail) alert(err *domain.IntegrityError) {
	if at.metrics != nil {
		at.metrics.IntegrityViolations.Inc()
	}
	at.logger.Error().
		Int64("seq", err.Seq).
		Str("reason", err.Reason).
		Msg("audit chain integrity violation")
}
