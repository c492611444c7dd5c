package domain

import "github.com/shopspring/decimal"

// KontoBalance is the running debit/credit total of one ledger account.
type KontoBalance struct {
	Konto  string
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Net returns debit minus credit for the konto.
func (b KontoBalance) Net() decimal.Decimal {
	return b.Debit.Sub(b.Credit)
}

// TrialBalance aggregates the booked debit and credit totals per konto.
// After every sequence of successful bookings TotalDebit equals TotalCredit,
// because each booked transaction individually balances.
type TrialBalance struct {
	Kontos      []KontoBalance
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether the global debit and credit totals match exactly.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// Konto returns the balance row for a konto, or a zero row when the konto
// has no bookings yet.
func (tb TrialBalance) Konto(konto string) KontoBalance {
	for _, kb := range tb.Kontos {
		if kb.Konto == konto {
			return kb
		}
	}
	return KontoBalance{Konto: konto, Debit: decimal.Zero, Credit: decimal.Zero}
}
