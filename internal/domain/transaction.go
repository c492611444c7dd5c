package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a transaction.
// Proposed -> Booked -> Reversed; proposals may also end up Rejected.
// There is no transition out of Rejected or back to Proposed.
type TransactionStatus string

const (
	StatusProposed TransactionStatus = "proposed"
	StatusBooked   TransactionStatus = "booked"
	StatusRejected TransactionStatus = "rejected"
	StatusReversed TransactionStatus = "reversed"
)

// Counterparty carries the advisory identity data attached to a transaction.
// It feeds the anomaly checks and the masked export view; it is never part
// of the fingerprint or the balance invariant.
type Counterparty struct {
	ID    string
	Name  string
	TaxID string
	IBAN  string
}

// Transaction is one unit of double-entry work. Once booked its entries are
// immutable; corrections are new transactions (storno), never in-place edits.
type Transaction struct {
	ID           int64  // monotonic, assigned on booking; 0 while proposed
	ProposalID   string // ULID, assigned on propose
	Date         time.Time
	Description  string
	DocumentRef  string
	Entries      []Entry
	Counterparty *Counterparty
	Status       TransactionStatus
	StornoOf     *int64
	Fingerprint  string
	BookedAt     time.Time
	BookedBy     string // actor ref of the booking/approving actor
}

// ValidateStructure rejects malformed entry sets before any state change:
// fewer than two entries, invalid sides, empty kontos, non-positive amounts.
// This is the check proposals must already pass.
func (t *Transaction) ValidateStructure() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}

	if len(t.Entries) < 2 {
		return ErrTooFewEntries
	}

	for _, e := range t.Entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ValidateForBooking runs the full booking validation: structure, at least
// one entry on each side, and the exact balance invariant. No rounding
// tolerance: a delta of one smallest representable unit rejects.
func (t *Transaction) ValidateForBooking() error {
	if err := t.ValidateStructure(); err != nil {
		return err
	}

	debit, credit := t.Totals()
	if debit.IsZero() || credit.IsZero() {
		return ErrOneSided
	}

	if !debit.Equal(credit) {
		return &BalanceError{Debit: debit, Credit: credit}
	}

	return nil
}

// Totals returns the debit and credit sums of the entry set.
func (t *Transaction) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range t.Entries {
		if e.Side == Debit {
			debit = debit.Add(e.Amount)
		} else {
			credit = credit.Add(e.Amount)
		}
	}
	return debit, credit
}

// Amount returns the transaction volume: the debit total of a balanced
// transaction.
func (t *Transaction) Amount() decimal.Decimal {
	debit, _ := t.Totals()
	return debit
}

// ComputeFingerprint returns the SHA-256 hex digest of the canonical
// encoding of date, description, document ref and entries. Identical content
// yields identical fingerprints; any differing field changes the digest.
func (t *Transaction) ComputeFingerprint() string {
	var b strings.Builder
	b.WriteString(t.Date.UTC().Format("2006-01-02"))
	b.WriteByte('|')
	b.WriteString(t.Description)
	b.WriteByte('|')
	b.WriteString(t.DocumentRef)
	for _, e := range t.Entries {
		b.WriteByte('|')
		b.WriteString(e.Konto)
		b.WriteByte(':')
		b.WriteString(string(e.Side))
		b.WriteByte(':')
		b.WriteString(e.Amount.StringFixed(AmountScale))
		b.WriteByte(':')
		b.WriteString(e.Note)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Storno builds the reversing transaction: every entry's side flipped, the
// other content fields preserved, linked to the original id. The result goes
// through the normal booking path so it is validated, fingerprinted and
// audited like any other transaction.
func (t *Transaction) Storno() *Transaction {
	entries := make([]Entry, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = e.Reversed()
	}

	originalID := t.ID

	return &Transaction{
		Date:         t.Date,
		Description:  t.Description,
		DocumentRef:  t.DocumentRef,
		Entries:      entries,
		Counterparty: t.Counterparty,
		StornoOf:     &originalID,
	}
}
