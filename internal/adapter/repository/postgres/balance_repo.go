package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository on a per-konto
// running totals table. Totals only ever grow; a storno adds to the opposite
// column instead of subtracting.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// ApplyEntries adds each entry's amount to its konto's side total.
func (r *BalanceRepository) ApplyEntries(ctx context.Context, tx usecase.Transaction, entries []domain.Entry) error {
	q := conn(r.pool, tx)

	query := `
		INSERT INTO konto_totals (konto, debit_total, credit_total)
		VALUES ($1, $2, $3)
		ON CONFLICT (konto) DO UPDATE SET
			debit_total  = konto_totals.debit_total  + EXCLUDED.debit_total,
			credit_total = konto_totals.credit_total + EXCLUDED.credit_total
	`

	for _, e := range entries {
		debit, credit := decimal.Zero, decimal.Zero
		if e.Side == domain.Debit {
			debit = e.Amount
		} else {
			credit = e.Amount
		}

		_, err := q.Exec(ctx, query, e.Konto,
			decimalToNumeric(debit), decimalToNumeric(credit))
		if err != nil {
			return err
		}
	}

	return nil
}

// TrialBalance returns the per-konto totals in konto order plus the global
// sums.
func (r *BalanceRepository) TrialBalance(ctx context.Context) (*domain.TrialBalance, error) {
	query := `
		SELECT konto, debit_total, credit_total
		FROM konto_totals
		ORDER BY konto
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tb := &domain.TrialBalance{
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}

	for rows.Next() {
		var konto string
		var debit, credit pgtype.Numeric

		if err := rows.Scan(&konto, &debit, &credit); err != nil {
			return nil, err
		}

		kb := domain.KontoBalance{
			Konto:  konto,
			Debit:  numericToDecimal(debit),
			Credit: numericToDecimal(credit),
		}

		tb.Kontos = append(tb.Kontos, kb)
		tb.TotalDebit = tb.TotalDebit.Add(kb.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(kb.Credit)
	}

	return tb, rows.Err()
}
