package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/infrastructure/metrics"
	"github.com/vblaha/saldo/internal/masking"
)

const moduleLedger = "ledger"

// LedgerConfig wires the ledger's collaborators. Metrics, Checker and Retrier
// may be nil; Now defaults to UTC wall time.
type LedgerConfig struct {
	TxManager         TransactionManager
	Transactions      TransactionRepository
	Proposals         ProposalRepository
	Balances          BalanceRepository
	Audit             *AuditTrail
	IDGen             IDGenerator
	Checker           AnomalyChecker
	Retrier           Retrier
	Logger            zerolog.Logger
	Metrics           *metrics.Metrics
	IntegrityPageSize int
	Now               func() time.Time
}

// noRetry runs the operation exactly once.
type noRetry struct{}

func (noRetry) Retry(_ context.Context, op func() error) error { return op() }

// LedgerUseCase implements the booking operations. All state-changing
// operations are serialized through the audit trail's writer lock, the same
// lock standalone audit writes take, so transaction ids and audit sequence
// numbers are assigned gap-free even under concurrent requests.
type LedgerUseCase struct {
	txManager    TransactionManager
	transactions TransactionRepository
	proposals    ProposalRepository
	balances     BalanceRepository
	audit        *AuditTrail
	idGen        IDGenerator
	checker      AnomalyChecker
	retrier      Retrier
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	pageSize     int
	now          func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(cfg LedgerConfig) *LedgerUseCase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.IntegrityPageSize <= 0 {
		cfg.IntegrityPageSize = 500
	}
	if cfg.Retrier == nil {
		cfg.Retrier = noRetry{}
	}

	return &LedgerUseCase{
		txManager:    cfg.TxManager,
		transactions: cfg.Transactions,
		proposals:    cfg.Proposals,
		balances:     cfg.Balances,
		audit:        cfg.Audit,
		idGen:        cfg.IDGen,
		checker:      cfg.Checker,
		retrier:      cfg.Retrier,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		pageSize:     cfg.IntegrityPageSize,
		now:          cfg.Now,
	}
}

// BookingResult is a booked transaction plus the advisory anomaly findings.
// Anomalies never fail the booking, they ride along for the caller to act on.
type BookingResult struct {
	Transaction *domain.Transaction
	Anomalies   []domain.Anomaly
}

// Book validates and books a transaction directly. On any validation failure
// nothing is persisted: no transaction, no balance change, no audit entry.
func (uc *LedgerUseCase) Book(ctx context.Context, t *domain.Transaction, actor domain.Actor) (*BookingResult, error) {
	if err := uc.validate(t); err != nil {
		return nil, err
	}

	if err := uc.book(ctx, t, actor, domain.ActionBooking,
		fmt.Sprintf("booked %s over %s", t.Description, t.Amount().StringFixed(domain.AmountScale))); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.Bookings.Inc()
	}

	uc.logger.Info().
		Int64("transaction_id", t.ID).
		Str("actor", actor.Ref()).
		Str("amount", t.Amount().StringFixed(domain.AmountScale)).
		Msg("transaction booked")

	return uc.annotate(ctx, t), nil
}

// Propose stores a transaction for later human review. Structural validation
// applies immediately; the balance invariant is enforced at approval, so an
// unbalanced draft can sit in the queue but can never be booked.
func (uc *LedgerUseCase) Propose(ctx context.Context, t *domain.Transaction, actor domain.Actor) (*domain.Transaction, error) {
	if err := t.ValidateStructure(); err != nil {
		return nil, err
	}

	t.ProposalID = uc.idGen.Generate()
	t.Status = domain.StatusProposed
	t.Fingerprint = t.ComputeFingerprint()

	action := domain.ActionProposal
	if domain.IsAutomated(actor) {
		action = domain.ActionAutomatedProposal
	}

	err := uc.withTx(ctx, func(tx Transaction) error {
		if err := uc.proposals.Create(ctx, tx, t); err != nil {
			return err
		}

		_, err := uc.audit.Append(ctx, tx, actor, action, moduleLedger,
			fmt.Sprintf("proposed %s as %s", t.Description, t.ProposalID), "")
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.Proposals.Inc()
	}

	uc.logger.Info().
		Str("proposal_id", t.ProposalID).
		Str("actor", actor.Ref()).
		Msg("transaction proposed")

	return t, nil
}

// Approve books a pending proposal. Approval runs the full booking
// validation, so a proposal that drifted out of balance is rejected here with
// the same balance error a direct booking would get.
func (uc *LedgerUseCase) Approve(ctx context.Context, proposalID string, actor domain.Actor) (*BookingResult, error) {
	t, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusProposed {
		return nil, domain.ErrProposalClosed
	}

	if err := uc.validate(t); err != nil {
		return nil, err
	}

	if err := uc.book(ctx, t, actor, domain.ActionApproval,
		fmt.Sprintf("approved proposal %s", proposalID)); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.Approvals.Inc()
	}

	uc.logger.Info().
		Str("proposal_id", proposalID).
		Int64("transaction_id", t.ID).
		Str("actor", actor.Ref()).
		Msg("proposal approved")

	return uc.annotate(ctx, t), nil
}

// Reject closes a pending proposal without booking it. The rejection reason
// lands in the audit trail, not in the ledger.
func (uc *LedgerUseCase) Reject(ctx context.Context, proposalID string, actor domain.Actor, reason string) error {
	t, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusProposed {
		return domain.ErrProposalClosed
	}

	err = uc.withTx(ctx, func(tx Transaction) error {
		if err := uc.proposals.UpdateStatus(ctx, tx, proposalID, domain.StatusRejected); err != nil {
			return err
		}

		_, err := uc.audit.Append(ctx, tx, actor, domain.ActionRejection, moduleLedger,
			fmt.Sprintf("rejected proposal %s: %s", proposalID, reason), "")
		return err
	})
	if err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.Rejections.Inc()
	}

	uc.logger.Info().
		Str("proposal_id", proposalID).
		Str("actor", actor.Ref()).
		Msg("proposal rejected")

	return nil
}

// Storno books the full reversal of an already booked transaction and flags
// the original as reversed. The original rows stay byte-for-byte intact; a
// second storno of the same transaction is refused.
func (uc *LedgerUseCase) Storno(ctx context.Context, id int64, actor domain.Actor, reason string) (*BookingResult, error) {
	original, err := uc.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch original.Status {
	case domain.StatusBooked:
	case domain.StatusReversed:
		return nil, domain.ErrAlreadyReversed
	default:
		return nil, domain.ErrNotBooked
	}

	reversal := original.Storno()
	if err := uc.validate(reversal); err != nil {
		return nil, err
	}

	reversal.Status = domain.StatusBooked
	reversal.Fingerprint = reversal.ComputeFingerprint()
	reversal.BookedAt = uc.now()
	reversal.BookedBy = actor.Ref()

	err = uc.withTx(ctx, func(tx Transaction) error {
		// Claim the original first. A racing second reversal fails here,
		// before anything of its own is written.
		if err := uc.transactions.MarkReversed(ctx, tx, id); err != nil {
			return err
		}

		reversalID, err := uc.transactions.Append(ctx, tx, reversal)
		if err != nil {
			return err
		}
		reversal.ID = reversalID

		if err := uc.balances.ApplyEntries(ctx, tx, reversal.Entries); err != nil {
			return err
		}

		_, err = uc.audit.Append(ctx, tx, actor, domain.ActionCorrection, moduleLedger,
			fmt.Sprintf("storno of %d as %d: %s", id, reversalID, reason), "")
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.Stornos.Inc()
	}

	uc.logger.Info().
		Int64("original_id", id).
		Int64("reversal_id", reversal.ID).
		Str("actor", actor.Ref()).
		Msg("transaction reversed")

	return &BookingResult{Transaction: reversal}, nil
}

// TrialBalance returns the per-konto totals. An unbalanced result is itself
// an integrity violation and is surfaced as one.
func (uc *LedgerUseCase) TrialBalance(ctx context.Context) (*domain.TrialBalance, error) {
	tb, err := uc.balances.TrialBalance(ctx)
	if err != nil {
		return nil, err
	}

	if !tb.Balanced() {
		if uc.metrics != nil {
			uc.metrics.IntegrityViolations.Inc()
		}
		uc.logger.Error().
			Str("total_debit", tb.TotalDebit.StringFixed(domain.AmountScale)).
			Str("total_credit", tb.TotalCredit.StringFixed(domain.AmountScale)).
			Msg("trial balance out of balance")
		return tb, &domain.IntegrityError{Reason: "trial balance totals differ"}
	}

	return tb, nil
}

// IntegrityCursor carries the scan position, running totals and the count of
// violations found so far between pages of a resumable integrity check.
type IntegrityCursor struct {
	AfterID    int64           `json:"after_id"`
	Checked    int             `json:"checked"`
	Violations int             `json:"violations"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
}

// IntegrityReport is one page of integrity verification. When Complete is
// false the caller resumes with Cursor. Valid covers everything scanned so
// far, including violations found on earlier pages; Violations lists only
// the current page's findings.
type IntegrityReport struct {
	Complete   bool
	Valid      bool
	Checked    int
	Violations []string
	Cursor     *IntegrityCursor
}

// VerifyIntegrity rechecks booked transactions page by page: every stored
// transaction must still balance and still match its stored fingerprint. On
// the final page the accumulated totals are reconciled against the trial
// balance. A nil cursor starts from the beginning. Violations raise the
// integrity alert on the page where they are found, not at scan completion,
// and the cursor carries their count so the final page's verdict covers the
// whole scan.
func (uc *LedgerUseCase) VerifyIntegrity(ctx context.Context, cursor *IntegrityCursor) (*IntegrityReport, error) {
	if cursor == nil {
		cursor = &IntegrityCursor{Debit: decimal.Zero, Credit: decimal.Zero}
		if uc.metrics != nil {
			uc.metrics.IntegrityChecks.Inc()
		}
	}

	report := &IntegrityReport{}

	page, err := uc.transactions.ListBooked(ctx, cursor.AfterID, uc.pageSize)
	if err != nil {
		return nil, err
	}

	for _, t := range page {
		cursor.Checked++
		cursor.AfterID = t.ID

		debit, credit := t.Totals()
		if !debit.Equal(credit) {
			report.Violations = append(report.Violations,
				fmt.Sprintf("transaction %d is unbalanced: debit %s, credit %s",
					t.ID, debit.StringFixed(domain.AmountScale), credit.StringFixed(domain.AmountScale)))
		}

		if recomputed := t.ComputeFingerprint(); recomputed != t.Fingerprint {
			report.Violations = append(report.Violations,
				fmt.Sprintf("transaction %d content differs from its stored fingerprint", t.ID))
		}

		cursor.Debit = cursor.Debit.Add(debit)
		cursor.Credit = cursor.Credit.Add(credit)
	}

	report.Checked = cursor.Checked

	if len(page) == uc.pageSize {
		cursor.Violations += len(report.Violations)
		uc.alertViolations(report.Violations)
		report.Cursor = cursor
		report.Valid = cursor.Violations == 0
		return report, nil
	}

	report.Complete = true

	tb, err := uc.balances.TrialBalance(ctx)
	if err != nil {
		return nil, err
	}

	if !tb.TotalDebit.Equal(cursor.Debit) || !tb.TotalCredit.Equal(cursor.Credit) {
		report.Violations = append(report.Violations,
			fmt.Sprintf("running totals (debit %s, credit %s) differ from trial balance (debit %s, credit %s)",
				cursor.Debit.StringFixed(domain.AmountScale), cursor.Credit.StringFixed(domain.AmountScale),
				tb.TotalDebit.StringFixed(domain.AmountScale), tb.TotalCredit.StringFixed(domain.AmountScale)))
	}

	cursor.Violations += len(report.Violations)
	uc.alertViolations(report.Violations)
	report.Valid = cursor.Violations == 0

	return report, nil
}

// alertViolations raises the integrity alert for one page's findings.
func (uc *LedgerUseCase) alertViolations(violations []string) {
	if len(violations) == 0 {
		return
	}
	if uc.metrics != nil {
		uc.metrics.IntegrityViolations.Inc()
	}
	for _, v := range violations {
		uc.logger.Error().Str("violation", v).Msg("ledger integrity violation")
	}
}

// ExportView is the outward-facing projection of a transaction with
// counterparty identity fields rendered for the requesting privilege level.
type ExportView struct {
	Transaction  *domain.Transaction
	Counterparty *masking.Record
}

// Export returns a transaction for external consumption. Restricted callers
// get the counterparty redacted; every export, full or restricted, leaves an
// audit entry naming the transaction and the privilege used.
func (uc *LedgerUseCase) Export(ctx context.Context, id int64, p masking.Privilege, actor domain.Actor) (*ExportView, error) {
	t, err := uc.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &ExportView{Transaction: t}
	if t.Counterparty != nil {
		rec := masking.ForExport(masking.Record{
			Name:  t.Counterparty.Name,
			TaxID: t.Counterparty.TaxID,
			IBAN:  t.Counterparty.IBAN,
		}, p)
		view.Counterparty = &rec
	}

	_, err = uc.audit.Log(ctx, actor, domain.ActionExport, moduleLedger,
		fmt.Sprintf("exported transaction %d with %s privilege", id, p), "")
	if err != nil {
		return nil, err
	}

	return view, nil
}

// GetTransaction returns a booked transaction by id.
func (uc *LedgerUseCase) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return uc.transactions.GetByID(ctx, id)
}

// GetProposal returns a proposal by id.
func (uc *LedgerUseCase) GetProposal(ctx context.Context, proposalID string) (*domain.Transaction, error) {
	return uc.proposals.GetByID(ctx, proposalID)
}

// ListOpenProposals returns pending proposals for the review queue.
func (uc *LedgerUseCase) ListOpenProposals(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	return uc.proposals.ListOpen(ctx, limit, offset)
}

// validate runs the booking validation and counts balance violations.
func (uc *LedgerUseCase) validate(t *domain.Transaction) error {
	err := t.ValidateForBooking()
	if err == nil {
		return nil
	}

	var balErr *domain.BalanceError
	if errors.As(err, &balErr) {
		if uc.metrics != nil {
			uc.metrics.BalanceErrors.Inc()
		}
		uc.logger.Warn().
			Str("delta", balErr.Delta().StringFixed(domain.AmountScale)).
			Msg("unbalanced transaction rejected")
	}

	return err
}

// book persists a validated transaction, its balance deltas and its audit
// entry in one database transaction, under the writer lock. A proposal id on
// the transaction additionally transitions the proposal to booked.
func (uc *LedgerUseCase) book(ctx context.Context, t *domain.Transaction, actor domain.Actor, action domain.ActionKind, details string) error {
	t.Status = domain.StatusBooked
	t.Fingerprint = t.ComputeFingerprint()
	t.BookedAt = uc.now()
	t.BookedBy = actor.Ref()

	err := uc.withTx(ctx, func(tx Transaction) error {
		// Close the proposal first. A racing second approval fails here,
		// before anything of its own is written.
		if t.ProposalID != "" {
			if err := uc.proposals.UpdateStatus(ctx, tx, t.ProposalID, domain.StatusBooked); err != nil {
				return err
			}
		}

		id, err := uc.transactions.Append(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id

		if err := uc.balances.ApplyEntries(ctx, tx, t.Entries); err != nil {
			return err
		}

		_, err = uc.audit.Append(ctx, tx, actor, action, moduleLedger, details, "")
		return err
	})
	if err != nil {
		return err
	}

	if uc.metrics != nil {
		amount, _ := t.Amount().Float64()
		uc.metrics.BookedAmount.Observe(amount)
	}

	return nil
}

// withTx runs fn inside one database transaction under the audit trail's
// writer lock, held until commit. On a transient database failure the whole
// transaction is rolled back and fn runs again from the top.
func (uc *LedgerUseCase) withTx(ctx context.Context, fn func(tx Transaction) error) error {
	uc.audit.mu.Lock()
	defer uc.audit.mu.Unlock()

	return uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

// annotate runs the advisory anomaly checks after a successful commit,
// outside the writer lock. Checker failures degrade to a log line, never to
// a booking error.
func (uc *LedgerUseCase) annotate(ctx context.Context, t *domain.Transaction) *BookingResult {
	result := &BookingResult{Transaction: t}
	if uc.checker == nil {
		return result
	}

	anomalies, err := uc.checker.Check(ctx, t)
	if err != nil {
		uc.logger.Warn().Err(err).Int64("transaction_id", t.ID).Msg("anomaly check failed")
		return result
	}

	result.Anomalies = anomalies
	for _, a := range anomalies {
		if uc.metrics != nil {
			uc.metrics.Anomalies.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
		}
		uc.logger.Warn().
			Int64("transaction_id", t.ID).
			Str("kind", string(a.Kind)).
			Str("severity", string(a.Severity)).
			Str("reason", a.Reason).
			Msg("anomaly detected")
	}

	return result
}
