package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the fixed number of fractional digits for all amounts.
// Amounts entering the core are rounded half-up to this scale; the balance
// invariant is then evaluated with exact decimal equality.
const AmountScale = 2

// Side is the side of the balance equation an entry contributes to.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Opposite returns the reversed side, used when building a storno.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == Debit || s == Credit
}

// Entry is one line of a transaction: a konto (chart-of-accounts code,
// opaque to this core), a side, a strictly positive fixed-point amount and
// an optional note.
type Entry struct {
	Konto  string
	Side   Side
	Amount decimal.Decimal
	Note   string
}

// NewEntry builds a validated entry. The amount is normalized to AmountScale
// with half-up rounding; zero and negative amounts are rejected.
func NewEntry(konto string, side Side, amount decimal.Decimal, note string) (Entry, error) {
	konto = strings.TrimSpace(konto)
	if konto == "" {
		return Entry{}, ErrEmptyKonto
	}

	if !side.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}

	amount = amount.Round(AmountScale)
	if amount.LessThanOrEqual(decimal.Zero) {
		return Entry{}, fmt.Errorf("%w: konto %s amount %s", ErrNonPositiveAmount, konto, amount)
	}

	return Entry{
		Konto:  konto,
		Side:   side,
		Amount: amount,
		Note:   note,
	}, nil
}

// Validate re-checks entry invariants for entries not built via NewEntry.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Konto) == "" {
		return ErrEmptyKonto
	}

	if !e.Side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, e.Side)
	}

	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: konto %s amount %s", ErrNonPositiveAmount, e.Konto, e.Amount)
	}

	return nil
}

// Reversed returns the entry with its side flipped and all other fields kept.
func (e Entry) Reversed() Entry {
	e.Side = e.Side.Opposite()
	return e
}
