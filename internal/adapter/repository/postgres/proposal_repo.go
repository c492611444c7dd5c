package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
)

// ProposalRepository implements usecase.ProposalRepository. Proposal content
// is stored as JSONB: proposals are drafts, only booking turns them into
// relational ledger rows.
type ProposalRepository struct {
	pool *pgxpool.Pool
}

// NewProposalRepository creates a new ProposalRepository.
func NewProposalRepository(pool *pgxpool.Pool) *ProposalRepository {
	return &ProposalRepository{pool: pool}
}

// Create stores a new proposal.
func (r *ProposalRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	q := conn(r.pool, tx)

	entries, err := marshalEntries(t.Entries)
	if err != nil {
		return err
	}

	counterparty, err := marshalCounterparty(t.Counterparty)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO proposals (
			proposal_id, date, description, document_ref,
			entries, counterparty, status, fingerprint, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`

	_, err = q.Exec(ctx, query,
		t.ProposalID,
		t.Date,
		t.Description,
		t.DocumentRef,
		entries,
		counterparty,
		string(t.Status),
		t.Fingerprint,
	)

	return err
}

// GetByID retrieves a proposal.
func (r *ProposalRepository) GetByID(ctx context.Context, proposalID string) (*domain.Transaction, error) {
	query := `
		SELECT proposal_id, date, description, document_ref,
		       entries, counterparty, status, fingerprint
		FROM proposals
		WHERE proposal_id = $1
	`

	t, err := scanProposal(r.pool.QueryRow(ctx, query, proposalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProposalNotFound
		}
		return nil, err
	}

	return t, nil
}

// UpdateStatus transitions a proposal out of the open state. Every legal
// transition starts at proposed, so the update is guarded on it: of two
// concurrent approvals only the first commits, the second sees a closed
// proposal.
func (r *ProposalRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, proposalID string, status domain.TransactionStatus) error {
	q := conn(r.pool, tx)

	tag, err := q.Exec(ctx,
		`UPDATE proposals SET status = $1 WHERE proposal_id = $2 AND status = $3`,
		string(status), proposalID, string(domain.StatusProposed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProposalClosed
	}

	return nil
}

// ListOpen returns pending proposals in submission order.
func (r *ProposalRepository) ListOpen(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT proposal_id, date, description, document_ref,
		       entries, counterparty, status, fingerprint
		FROM proposals
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, string(domain.StatusProposed), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []*domain.Transaction
	for rows.Next() {
		t, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, t)
	}

	return proposals, rows.Err()
}

func scanProposal(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var date time.Time
	var entries, counterparty []byte
	var status string

	err := row.Scan(
		&t.ProposalID,
		&date,
		&t.Description,
		&t.DocumentRef,
		&entries,
		&counterparty,
		&status,
		&t.Fingerprint,
	)
	if err != nil {
		return nil, err
	}

	t.Date = date
	t.Status = domain.TransactionStatus(status)

	t.Entries, err = unmarshalEntries(entries)
	if err != nil {
		return nil, err
	}

	t.Counterparty, err = unmarshalCounterparty(counterparty)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
