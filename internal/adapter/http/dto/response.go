package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/anomaly"
	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/masking"
	"github.com/vblaha/saldo/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// EntryResponse represents one booked line in API responses.
type EntryResponse struct {
	Konto  string          `json:"konto"`
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// CounterpartyResponse represents counterparty identity in API responses.
// Field values may be masked depending on the caller's privilege.
type CounterpartyResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	TaxID string `json:"tax_id,omitempty"`
	IBAN  string `json:"iban,omitempty"`
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID           int64                 `json:"id,omitempty"`
	ProposalID   string                `json:"proposal_id,omitempty"`
	Date         string                `json:"date"`
	Description  string                `json:"description"`
	DocumentRef  string                `json:"document_ref,omitempty"`
	Entries      []EntryResponse       `json:"entries"`
	Counterparty *CounterpartyResponse `json:"counterparty,omitempty"`
	Status       string                `json:"status"`
	StornoOf     *int64                `json:"storno_of,omitempty"`
	Fingerprint  string                `json:"fingerprint,omitempty"`
	BookedAt     *time.Time            `json:"booked_at,omitempty"`
	BookedBy     string                `json:"booked_by,omitempty"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	entries := make([]EntryResponse, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = EntryResponse{
			Konto:  e.Konto,
			Side:   string(e.Side),
			Amount: e.Amount,
			Note:   e.Note,
		}
	}

	resp := &TransactionResponse{
		ID:          t.ID,
		ProposalID:  t.ProposalID,
		Date:        t.Date.Format("2006-01-02"),
		Description: t.Description,
		DocumentRef: t.DocumentRef,
		Entries:     entries,
		Status:      string(t.Status),
		StornoOf:    t.StornoOf,
		Fingerprint: t.Fingerprint,
		BookedBy:    t.BookedBy,
	}

	if !t.BookedAt.IsZero() {
		bookedAt := t.BookedAt
		resp.BookedAt = &bookedAt
	}

	if t.Counterparty != nil {
		resp.Counterparty = &CounterpartyResponse{
			ID:    t.Counterparty.ID,
			Name:  t.Counterparty.Name,
			TaxID: t.Counterparty.TaxID,
			IBAN:  t.Counterparty.IBAN,
		}
	}

	return resp
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(transactions []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(transactions))
	for i, t := range transactions {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// AnomalyResponse represents one advisory finding.
type AnomalyResponse struct {
	Kind     string            `json:"kind"`
	Severity string            `json:"severity"`
	Reason   string            `json:"reason"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

// AnomaliesFromDomain converts domain anomalies to responses.
func AnomaliesFromDomain(anomalies []domain.Anomaly) []AnomalyResponse {
	result := make([]AnomalyResponse, len(anomalies))
	for i, a := range anomalies {
		result[i] = AnomalyResponse{
			Kind:     string(a.Kind),
			Severity: string(a.Severity),
			Reason:   a.Reason,
			Evidence: a.Evidence,
		}
	}
	return result
}

// BookingResponse represents the outcome of booking a transaction.
type BookingResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	Anomalies   []AnomalyResponse    `json:"anomalies,omitempty"`
}

// BookingFromResult converts a booking result to a response.
func BookingFromResult(result *usecase.BookingResult) *BookingResponse {
	return &BookingResponse{
		Transaction: TransactionFromDomain(result.Transaction),
		Anomalies:   AnomaliesFromDomain(result.Anomalies),
	}
}

// KontoBalanceResponse represents one konto's running totals.
type KontoBalanceResponse struct {
	Konto  string          `json:"konto"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
	Net    decimal.Decimal `json:"net"`
}

// TrialBalanceResponse represents the trial balance in API responses.
type TrialBalanceResponse struct {
	Kontos      []KontoBalanceResponse `json:"kontos"`
	TotalDebit  decimal.Decimal        `json:"total_debit"`
	TotalCredit decimal.Decimal        `json:"total_credit"`
	Balanced    bool                   `json:"balanced"`
}

// TrialBalanceFromDomain converts a domain trial balance to a response.
func TrialBalanceFromDomain(tb *domain.TrialBalance) *TrialBalanceResponse {
	kontos := make([]KontoBalanceResponse, len(tb.Kontos))
	for i, kb := range tb.Kontos {
		kontos[i] = KontoBalanceResponse{
			Konto:  kb.Konto,
			Debit:  kb.Debit,
			Credit: kb.Credit,
			Net:    kb.Net(),
		}
	}

	return &TrialBalanceResponse{
		Kontos:      kontos,
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.Balanced(),
	}
}

// IntegrityResponse represents one page of ledger verification.
type IntegrityResponse struct {
	Complete   bool     `json:"complete"`
	Valid      bool     `json:"valid"`
	Checked    int      `json:"checked"`
	Violations []string `json:"violations,omitempty"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// ChainReportResponse represents the audit chain verification outcome.
type ChainReportResponse struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	FirstBreakSeq  *int64 `json:"first_break_seq,omitempty"`
}

// ChainReportFromUseCase converts a chain report to a response.
func ChainReportFromUseCase(report *usecase.ChainReport) *ChainReportResponse {
	return &ChainReportResponse{
		Valid:          report.Valid,
		EntriesChecked: report.EntriesChecked,
		FirstBreakSeq:  report.FirstBreakSeq,
	}
}

// AuditEntryResponse represents one audit chain entry.
type AuditEntryResponse struct {
	Seq             int64     `json:"seq"`
	Actor           string    `json:"actor"`
	Action          string    `json:"action"`
	Module          string    `json:"module"`
	Details         string    `json:"details,omitempty"`
	Risk            string    `json:"risk"`
	At              time.Time `json:"at"`
	Fingerprint     string    `json:"fingerprint"`
	PrevFingerprint string    `json:"prev_fingerprint"`
}

// AuditEntriesFromDomain converts domain audit entries to responses.
// Restricted audiences get human actor names collapsed to initials; system
// actors and chain fields stay untouched so the view remains verifiable.
func AuditEntriesFromDomain(entries []*domain.AuditEntry, p masking.Privilege) []*AuditEntryResponse {
	result := make([]*AuditEntryResponse, len(entries))
	for i, e := range entries {
		actor := e.Actor.Ref()
		if p == masking.PrivilegeRestricted {
			if human, ok := e.Actor.(domain.Human); ok {
				actor = "human:" + masking.PersonName(human.UserID)
			}
		}

		result[i] = &AuditEntryResponse{
			Seq:             e.Seq,
			Actor:           actor,
			Action:          string(e.Action),
			Module:          e.Module,
			Details:         e.Details,
			Risk:            string(e.Risk),
			At:              e.At,
			Fingerprint:     e.Fingerprint,
			PrevFingerprint: e.PrevFingerprint,
		}
	}
	return result
}

// ExportResponse represents an exported transaction. The counterparty block
// reflects the requesting privilege, masked or not.
type ExportResponse struct {
	Transaction  *TransactionResponse  `json:"transaction"`
	Counterparty *CounterpartyResponse `json:"counterparty,omitempty"`
}

// ExportFromView converts an export view to a response. The transaction's
// own counterparty block is dropped in favor of the privilege-rendered one.
func ExportFromView(view *usecase.ExportView) *ExportResponse {
	resp := &ExportResponse{
		Transaction: TransactionFromDomain(view.Transaction),
	}
	resp.Transaction.Counterparty = nil

	if view.Counterparty != nil {
		resp.Counterparty = &CounterpartyResponse{
			Name:  view.Counterparty.Name,
			TaxID: view.Counterparty.TaxID,
			IBAN:  view.Counterparty.IBAN,
		}
	}

	return resp
}

// BenfordResponse represents the batch leading-digit statistics.
type BenfordResponse struct {
	Applicable bool      `json:"applicable"`
	SampleSize int       `json:"sample_size"`
	Observed   []float64 `json:"observed,omitempty"`
	Expected   []float64 `json:"expected,omitempty"`
	MAD        float64   `json:"mad"`
	Exceeded   bool      `json:"exceeded"`
}

// AnomalyCheckResponse represents per-transaction findings.
type AnomalyCheckResponse struct {
	Anomalies []AnomalyResponse `json:"anomalies"`
}

// AnomalyBatchResponse represents batch evaluation results.
type AnomalyBatchResponse struct {
	PerTransaction [][]AnomalyResponse `json:"per_transaction"`
	Benford        *BenfordResponse    `json:"benford,omitempty"`
	BatchAnomalies []AnomalyResponse   `json:"batch_anomalies,omitempty"`
}

// BatchFromResult converts a detector batch result to a response.
func BatchFromResult(result *anomaly.BatchResult) *AnomalyBatchResponse {
	resp := &AnomalyBatchResponse{
		PerTransaction: make([][]AnomalyResponse, len(result.PerTransaction)),
		BatchAnomalies: AnomaliesFromDomain(result.BatchAnomalies),
	}
	for i, anomalies := range result.PerTransaction {
		resp.PerTransaction[i] = AnomaliesFromDomain(anomalies)
	}

	if result.Benford != nil {
		b := &BenfordResponse{
			Applicable: result.Benford.Applicable,
			SampleSize: result.Benford.SampleSize,
			MAD:        result.Benford.MAD,
			Exceeded:   result.Benford.Exceeded,
		}
		if result.Benford.Applicable {
			b.Observed = result.Benford.Observed[:]
			b.Expected = result.Benford.Expected[:]
		}
		resp.Benford = b
	}

	return resp
}
