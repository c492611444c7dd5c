package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Structural validation errors
	ErrTooFewEntries     = errors.New("transaction needs at least two entries")
	ErrOneSided          = errors.New("transaction needs at least one debit and one credit entry")
	ErrNonPositiveAmount = errors.New("entry amount must be positive")
	ErrEmptyKonto        = errors.New("entry konto must not be empty")
	ErrInvalidSide       = errors.New("invalid entry side")
	ErrEmptyDescription  = errors.New("transaction description must not be empty")

	// Lookup errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrProposalClosed      = errors.New("proposal already approved or rejected")

	// State errors
	ErrAlreadyReversed = errors.New("transaction already reversed")
	ErrNotBooked       = errors.New("transaction is not booked")
)

// BalanceError reports a violated balance invariant: the debit and credit
// totals of a transaction and the exact delta between them.
type BalanceError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("transaction is unbalanced: debit %s, credit %s, delta %s",
		e.Debit.StringFixed(AmountScale),
		e.Credit.StringFixed(AmountScale),
		e.Delta().StringFixed(AmountScale))
}

// Delta returns debit total minus credit total.
func (e *BalanceError) Delta() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// IntegrityError signals possible tampering or data loss discovered by
// verification. It is not a recoverable request error: callers must surface
// it to an operator-visible channel, never retry or swallow it.
type IntegrityError struct {
	Reason string
	Seq    int64
}

func (e *IntegrityError) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("integrity violation at %d: %s", e.Seq, e.Reason)
	}
	return fmt.Sprintf("integrity violation: %s", e.Reason)
}
