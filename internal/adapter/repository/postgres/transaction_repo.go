package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository. Booked rows
// are append-only; the only update ever issued is the reversed flag set by
// storno.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Append stores a booked transaction with its entries and returns the
// assigned id.
func (r *TransactionRepository) Append(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) (int64, error) {
	q := conn(r.pool, tx)

	counterparty, err := marshalCounterparty(t.Counterparty)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO transactions (
			proposal_id, date, description, document_ref, counterparty,
			status, storno_of, fingerprint, booked_at, booked_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err = q.QueryRow(ctx, query,
		t.ProposalID,
		t.Date,
		t.Description,
		t.DocumentRef,
		counterparty,
		string(t.Status),
		t.StornoOf,
		t.Fingerprint,
		timeToPgTimestamptz(t.BookedAt),
		t.BookedBy,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	entryQuery := `
		INSERT INTO entries (id, transaction_id, position, konto, side, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, e := range t.Entries {
		_, err := q.Exec(ctx, entryQuery,
			uuid.New().String(),
			id,
			i,
			e.Konto,
			string(e.Side),
			decimalToNumeric(e.Amount),
			e.Note,
		)
		if err != nil {
			return 0, err
		}
	}

	return id, nil
}

// GetByID retrieves a transaction with its entries.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `
		SELECT id, proposal_id, date, description, document_ref, counterparty,
		       status, storno_of, fingerprint, booked_at, booked_by
		FROM transactions
		WHERE id = $1
	`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	entries, err := r.loadEntries(ctx, []int64{t.ID})
	if err != nil {
		return nil, err
	}
	t.Entries = entries[t.ID]

	return t, nil
}

// MarkReversed flags the original transaction after its storno booked. The
// transition is guarded on the prior status, so of two concurrent stornos only
// the one whose update lands on a still-booked row commits.
func (r *TransactionRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id int64) error {
	q := conn(r.pool, tx)

	tag, err := q.Exec(ctx,
		`UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		string(domain.StatusReversed), id, string(domain.StatusBooked))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyReversed
	}

	return nil
}

// ListBooked returns transactions with id greater than afterID in id order,
// at most limit rows. Reversed originals are included: they are still booked
// content and still count toward the running totals.
func (r *TransactionRepository) ListBooked(ctx context.Context, afterID int64, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT id, proposal_id, date, description, document_ref, counterparty,
		       status, storno_of, fingerprint, booked_at, booked_by
		FROM transactions
		WHERE id > $1 AND status IN ($2, $3)
		ORDER BY id
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, afterID,
		string(domain.StatusBooked), string(domain.StatusReversed), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	var ids []int64
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return transactions, nil
	}

	entries, err := r.loadEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range transactions {
		t.Entries = entries[t.ID]
	}

	return transactions, nil
}

// loadEntries fetches the entry lines for a set of transactions, keyed by
// transaction id and ordered by position.
func (r *TransactionRepository) loadEntries(ctx context.Context, ids []int64) (map[int64][]domain.Entry, error) {
	query := `
		SELECT transaction_id, konto, side, amount, note
		FROM entries
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, position
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[int64][]domain.Entry, len(ids))
	for rows.Next() {
		var txID int64
		var konto, side, note string
		var amount pgtype.Numeric

		if err := rows.Scan(&txID, &konto, &side, &amount, &note); err != nil {
			return nil, err
		}

		entries[txID] = append(entries[txID], domain.Entry{
			Konto:  konto,
			Side:   domain.Side(side),
			Amount: numericToDecimal(amount),
			Note:   note,
		})
	}

	return entries, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var counterparty []byte
	var status string
	var bookedAt pgtype.Timestamptz
	var date time.Time

	err := row.Scan(
		&t.ID,
		&t.ProposalID,
		&date,
		&t.Description,
		&t.DocumentRef,
		&counterparty,
		&status,
		&t.StornoOf,
		&t.Fingerprint,
		&bookedAt,
		&t.BookedBy,
	)
	if err != nil {
		return nil, err
	}

	t.Date = date
	t.Status = domain.TransactionStatus(status)
	t.BookedAt = bookedAt.Time

	t.Counterparty, err = unmarshalCounterparty(counterparty)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
