// Package anomaly implements the advisory transaction checker. It is
// read-only with respect to the ledger: it maintains only its own rolling
// counterparty history and its findings never block a booking.
package anomaly

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
)

// Config holds the detector thresholds. Zero values are replaced with the
// defaults below.
type Config struct {
	// HighAmountThreshold flags any amount strictly above it.
	HighAmountThreshold decimal.Decimal
	// AMLCashThreshold flags cash-konto amounts at or above it. The
	// boundary is inclusive: exactly-at-threshold flags.
	AMLCashThreshold decimal.Decimal
	// CashKontoPrefixes identifies cash-class kontos by code prefix.
	CashKontoPrefixes []string
	// DuplicateWindow is the lookback for same-counterparty same-amount
	// duplicates.
	DuplicateWindow time.Duration
	// BusinessHoursStart/End bound the expected entry window, hours in
	// [0,24). Entries outside [Start, End) flag as off-hours.
	BusinessHoursStart int
	BusinessHoursEnd   int
	// BenfordMinSample is the minimum batch size before the leading-digit
	// check applies.
	BenfordMinSample int
	// BenfordMADThreshold is the mean-absolute-deviation limit against the
	// Benford distribution above which a batch flags.
	BenfordMADThreshold float64
}

// DefaultConfig returns the standing thresholds: EUR 10k statutory cash
// limit, konto class 102 as cash, 7-day duplicate lookback, 07-20 business
// hours.
func DefaultConfig() Config {
	return Config{
		HighAmountThreshold: decimal.NewFromInt(50000),
		AMLCashThreshold:    decimal.NewFromInt(10000),
		CashKontoPrefixes:   []string{"102"},
		DuplicateWindow:     7 * 24 * time.Hour,
		BusinessHoursStart:  7,
		BusinessHoursEnd:    20,
		BenfordMinSample:    30,
		BenfordMADThreshold: 0.015,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HighAmountThreshold.IsZero() {
		c.HighAmountThreshold = d.HighAmountThreshold
	}
	if c.AMLCashThreshold.IsZero() {
		c.AMLCashThreshold = d.AMLCashThreshold
	}
	if len(c.CashKontoPrefixes) == 0 {
		c.CashKontoPrefixes = d.CashKontoPrefixes
	}
	if c.DuplicateWindow == 0 {
		c.DuplicateWindow = d.DuplicateWindow
	}
	if c.BusinessHoursStart == 0 && c.BusinessHoursEnd == 0 {
		c.BusinessHoursStart = d.BusinessHoursStart
		c.BusinessHoursEnd = d.BusinessHoursEnd
	}
	if c.BenfordMinSample == 0 {
		c.BenfordMinSample = d.BenfordMinSample
	}
	if c.BenfordMADThreshold == 0 {
		c.BenfordMADThreshold = d.BenfordMADThreshold
	}
	return c
}

// Observation is one recorded counterparty sighting in the rolling history.
type Observation struct {
	CounterpartyID string
	Amount         decimal.Decimal
	IBAN           string
	At             time.Time
}

// HistoryStore is the detector's own short rolling history keyed by
// counterparty. It holds no ledger data beyond what duplicate and
// banking-change checks need.
type HistoryStore interface {
	// Recent returns observations for a counterparty at or after since.
	Recent(ctx context.Context, counterpartyID string, since time.Time) ([]Observation, error)
	// LastIBAN returns the counterparty's previously recorded bank account,
	// or "" when the counterparty has never been seen.
	LastIBAN(ctx context.Context, counterpartyID string) (string, error)
	// Record appends an observation and updates the counterparty's last
	// known bank account.
	Record(ctx context.Context, obs Observation) error
}

// CheckInput describes one transaction to evaluate.
type CheckInput struct {
	Amount           decimal.Decimal
	CounterpartyID   string
	CounterpartyIBAN string
	Kontos           []string
	At               time.Time
}

// Detector evaluates transactions against the configured checks.
type Detector struct {
	cfg     Config
	history HistoryStore
}

// New creates a detector with the given history store. A nil store disables
// the duplicate and banking-change checks.
func New(cfg Config, history HistoryStore) *Detector {
	return &Detector{cfg: cfg.withDefaults(), history: history}
}

// CheckTransaction runs every per-transaction check independently and
// returns the advisory findings. It records the observation in the rolling
// history after checking, so a transaction never flags against itself.
func (d *Detector) CheckTransaction(ctx context.Context, in CheckInput) ([]domain.Anomaly, error) {
	var anomalies []domain.Anomaly

	if d.history != nil && in.CounterpartyID != "" {
		dup, err := d.checkDuplicate(ctx, in)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			anomalies = append(anomalies, *dup)
		}

		change, err := d.checkBankingChange(ctx, in)
		if err != nil {
			return nil, err
		}
		if change != nil {
			anomalies = append(anomalies, *change)
		}
	}

	if a := d.checkHighAmount(in); a != nil {
		anomalies = append(anomalies, *a)
	}

	if a := d.checkAMLCash(in); a != nil {
		anomalies = append(anomalies, *a)
	}

	if a := d.checkOffHours(in); a != nil {
		anomalies = append(anomalies, *a)
	}

	if d.history != nil && in.CounterpartyID != "" {
		err := d.history.Record(ctx, Observation{
			CounterpartyID: in.CounterpartyID,
			Amount:         in.Amount,
			IBAN:           in.CounterpartyIBAN,
			At:             in.At,
		})
		if err != nil {
			return nil, err
		}
	}

	return anomalies, nil
}

// Check adapts CheckTransaction to the booking path, deriving the input
// from a domain transaction.
func (d *Detector) Check(ctx context.Context, t *domain.Transaction) ([]domain.Anomaly, error) {
	return d.CheckTransaction(ctx, InputFromTransaction(t))
}

// InputFromTransaction builds the detector input for a transaction: its
// volume, its counterparty identity and its touched kontos. The timestamp is
// the booking time when set, the document date otherwise.
func InputFromTransaction(t *domain.Transaction) CheckInput {
	in := CheckInput{
		Amount: t.Amount(),
		At:     t.BookedAt,
	}
	if in.At.IsZero() {
		in.At = t.Date
	}

	if t.Counterparty != nil {
		in.CounterpartyID = t.Counterparty.ID
		in.CounterpartyIBAN = t.Counterparty.IBAN
	}

	seen := make(map[string]bool, len(t.Entries))
	for _, e := range t.Entries {
		if !seen[e.Konto] {
			seen[e.Konto] = true
			in.Kontos = append(in.Kontos, e.Konto)
		}
	}

	return in
}

// BatchResult holds per-transaction findings plus the batch-level
// statistical outlier summary.
type BatchResult struct {
	PerTransaction [][]domain.Anomaly
	Benford        *BenfordResult
	BatchAnomalies []domain.Anomaly
}

// CheckBatch evaluates each transaction independently and additionally runs
// the Benford leading-digit check across the batch's amounts. The Benford
// finding names only the batch, never an individual transaction.
func (d *Detector) CheckBatch(ctx context.Context, inputs []CheckInput) (*BatchResult, error) {
	result := &BatchResult{
		PerTransaction: make([][]domain.Anomaly, len(inputs)),
	}

	amounts := make([]decimal.Decimal, 0, len(inputs))
	for i, in := range inputs {
		anomalies, err := d.CheckTransaction(ctx, in)
		if err != nil {
			return nil, err
		}
		result.PerTransaction[i] = anomalies
		amounts = append(amounts, in.Amount)
	}

	result.Benford = CheckBenford(amounts, d.cfg.BenfordMinSample, d.cfg.BenfordMADThreshold)
	if result.Benford.Applicable && result.Benford.Exceeded {
		result.BatchAnomalies = append(result.BatchAnomalies, domain.Anomaly{
			Kind:     domain.AnomalyStatisticalOutlier,
			Severity: domain.SeverityMedium,
			Reason:   "leading-digit distribution deviates from Benford's law, batch warrants manual review",
			Evidence: map[string]string{
				"sample_size": fmt.Sprintf("%d", result.Benford.SampleSize),
				"mad":         fmt.Sprintf("%.4f", result.Benford.MAD),
				"threshold":   fmt.Sprintf("%.4f", d.cfg.BenfordMADThreshold),
			},
		})
	}

	return result, nil
}

func (d *Detector) checkDuplicate(ctx context.Context, in CheckInput) (*domain.Anomaly, error) {
	since := in.At.Add(-d.cfg.DuplicateWindow)
	recent, err := d.history.Recent(ctx, in.CounterpartyID, since)
	if err != nil {
		return nil, err
	}

	for _, obs := range recent {
		if obs.Amount.Equal(in.Amount) {
			return &domain.Anomaly{
				Kind:     domain.AnomalyDuplicate,
				Severity: domain.SeverityMedium,
				Reason:   "same counterparty and amount booked within the lookback window",
				Evidence: map[string]string{
					"counterparty": in.CounterpartyID,
					"amount":       in.Amount.StringFixed(domain.AmountScale),
					"previous_at":  obs.At.UTC().Format(time.RFC3339),
				},
			}, nil
		}
	}

	return nil, nil
}

func (d *Detector) checkBankingChange(ctx context.Context, in CheckInput) (*domain.Anomaly, error) {
	if in.CounterpartyIBAN == "" {
		return nil, nil
	}

	last, err := d.history.LastIBAN(ctx, in.CounterpartyID)
	if err != nil {
		return nil, err
	}

	// First occurrence never flags: nothing to compare against.
	if last == "" || last == in.CounterpartyIBAN {
		return nil, nil
	}

	return &domain.Anomaly{
		Kind:     domain.AnomalyCounterpartyChange,
		Severity: domain.SeverityCritical,
		Reason:   "counterparty bank account differs from previously recorded one",
		Evidence: map[string]string{
			"counterparty":  in.CounterpartyID,
			"previous_iban": last,
			"current_iban":  in.CounterpartyIBAN,
		},
	}, nil
}

func (d *Detector) checkHighAmount(in CheckInput) *domain.Anomaly {
	if in.Amount.LessThanOrEqual(d.cfg.HighAmountThreshold) {
		return nil
	}

	return &domain.Anomaly{
		Kind:     domain.AnomalyHighAmount,
		Severity: domain.SeverityMedium,
		Reason:   "amount exceeds the configured absolute threshold",
		Evidence: map[string]string{
			"amount":    in.Amount.StringFixed(domain.AmountScale),
			"threshold": d.cfg.HighAmountThreshold.StringFixed(domain.AmountScale),
		},
	}
}

func (d *Detector) checkAMLCash(in CheckInput) *domain.Anomaly {
	if in.Amount.LessThan(d.cfg.AMLCashThreshold) {
		return nil
	}

	cashKonto := ""
	for _, konto := range in.Kontos {
		for _, prefix := range d.cfg.CashKontoPrefixes {
			if strings.HasPrefix(konto, prefix) {
				cashKonto = konto
				break
			}
		}
		if cashKonto != "" {
			break
		}
	}

	if cashKonto == "" {
		return nil
	}

	return &domain.Anomaly{
		Kind:     domain.AnomalyAMLCashThreshold,
		Severity: domain.SeverityCritical,
		Reason:   "cash transaction at or above the statutory reporting threshold",
		Evidence: map[string]string{
			"amount":    in.Amount.StringFixed(domain.AmountScale),
			"threshold": d.cfg.AMLCashThreshold.StringFixed(domain.AmountScale),
			"konto":     cashKonto,
		},
	}
}

func (d *Detector) checkOffHours(in CheckInput) *domain.Anomaly {
	hour := in.At.Hour()
	if hour >= d.cfg.BusinessHoursStart && hour < d.cfg.BusinessHoursEnd {
		return nil
	}

	return &domain.Anomaly{
		Kind:     domain.AnomalyOffHours,
		Severity: domain.SeverityLow,
		Reason:   "entry timestamp falls outside the business-hours window",
		Evidence: map[string]string{
			"at":    in.At.Format(time.RFC3339),
			"hours": fmt.Sprintf("%02d-%02d", d.cfg.BusinessHoursStart, d.cfg.BusinessHoursEnd),
		},
	}
}
