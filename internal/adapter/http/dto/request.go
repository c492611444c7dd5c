package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/anomaly"
	"github.com/vblaha/saldo/internal/domain"
)

// EntryItem is one debit or credit line in a booking request.
type EntryItem struct {
	Konto  string          `json:"konto"`
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// CounterpartyPayload carries the optional counterparty identity.
type CounterpartyPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	TaxID string `json:"tax_id,omitempty"`
	IBAN  string `json:"iban,omitempty"`
}

// BookTransactionRequest represents a request to book or propose a
// transaction.
type BookTransactionRequest struct {
	Date         string               `json:"date"`
	Description  string               `json:"description"`
	DocumentRef  string               `json:"document_ref,omitempty"`
	Entries      []EntryItem          `json:"entries"`
	Counterparty *CounterpartyPayload `json:"counterparty,omitempty"`
}

// ToDomain converts the request to a domain transaction. Entry-level
// validation happens here; the balance invariant is the use case's job.
func (r *BookTransactionRequest) ToDomain() (*domain.Transaction, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", r.Date, err)
	}

	entries := make([]domain.Entry, 0, len(r.Entries))
	for _, item := range r.Entries {
		entry, err := domain.NewEntry(item.Konto, domain.Side(item.Side), item.Amount, item.Note)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	t := &domain.Transaction{
		Date:        date,
		Description: r.Description,
		DocumentRef: r.DocumentRef,
		Entries:     entries,
	}

	if r.Counterparty != nil {
		t.Counterparty = &domain.Counterparty{
			ID:    r.Counterparty.ID,
			Name:  r.Counterparty.Name,
			TaxID: r.Counterparty.TaxID,
			IBAN:  r.Counterparty.IBAN,
		}
	}

	return t, nil
}

// RejectProposalRequest carries the reviewer's rejection reason.
type RejectProposalRequest struct {
	Reason string `json:"reason"`
}

// StornoRequest carries the correction reason for a reversal.
type StornoRequest struct {
	Reason string `json:"reason"`
}

// AnomalyCheckRequest represents one transaction to evaluate out of band.
type AnomalyCheckRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	CounterpartyID   string          `json:"counterparty_id,omitempty"`
	CounterpartyIBAN string          `json:"counterparty_iban,omitempty"`
	Kontos           []string        `json:"kontos,omitempty"`
	At               time.Time       `json:"at"`
}

// ToInput converts to detector input.
func (r *AnomalyCheckRequest) ToInput() anomaly.CheckInput {
	return anomaly.CheckInput{
		Amount:           r.Amount,
		CounterpartyID:   r.CounterpartyID,
		CounterpartyIBAN: r.CounterpartyIBAN,
		Kontos:           r.Kontos,
		At:               r.At,
	}
}

// AnomalyBatchRequest represents a batch of transactions to evaluate
// together, including the batch-level distribution check.
type AnomalyBatchRequest struct {
	Transactions []AnomalyCheckRequest `json:"transactions"`
}

// ToInputs converts to detector inputs.
func (r *AnomalyBatchRequest) ToInputs() []anomaly.CheckInput {
	inputs := make([]anomaly.CheckInput, len(r.Transactions))
	for i, t := range r.Transactions {
		inputs[i] = t.ToInput()
	}
	return inputs
}
