package postgres

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
)

// counterpartyRecord is the JSONB shape of a transaction's counterparty.
type counterpartyRecord struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	TaxID string `json:"tax_id,omitempty"`
	IBAN  string `json:"iban,omitempty"`
}

// entryRecord is the JSONB shape of a proposal entry.
type entryRecord struct {
	Konto  string          `json:"konto"`
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

func marshalCounterparty(cp *domain.Counterparty) ([]byte, error) {
	if cp == nil {
		return nil, nil
	}

	return json.Marshal(counterpartyRecord{
		ID:    cp.ID,
		Name:  cp.Name,
		TaxID: cp.TaxID,
		IBAN:  cp.IBAN,
	})
}

func unmarshalCounterparty(data []byte) (*domain.Counterparty, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var rec counterpartyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return &domain.Counterparty{
		ID:    rec.ID,
		Name:  rec.Name,
		TaxID: rec.TaxID,
		IBAN:  rec.IBAN,
	}, nil
}

func marshalEntries(entries []domain.Entry) ([]byte, error) {
	records := make([]entryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, entryRecord{
			Konto:  e.Konto,
			Side:   string(e.Side),
			Amount: e.Amount,
			Note:   e.Note,
		})
	}

	return json.Marshal(records)
}

func unmarshalEntries(data []byte) ([]domain.Entry, error) {
	var records []entryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, domain.Entry{
			Konto:  rec.Konto,
			Side:   domain.Side(rec.Side),
			Amount: rec.Amount,
			Note:   rec.Note,
		})
	}

	return entries, nil
}
