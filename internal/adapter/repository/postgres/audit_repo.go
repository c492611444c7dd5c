package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository on an append-only table.
// Rows are never updated or deleted; chain verification relies on that.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

const auditColumns = `id, seq, actor_ref, action, module, details, risk, at, fingerprint, prev_fingerprint`

// Append stores a fully formed chain entry.
func (r *AuditRepository) Append(ctx context.Context, tx usecase.Transaction, e *domain.AuditEntry) error {
	q := conn(r.pool, tx)

	query := `
		INSERT INTO audit_entries (
			id, seq, actor_ref, action, module, details, risk,
			at, fingerprint, prev_fingerprint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.Exec(ctx, query,
		e.ID,
		e.Seq,
		e.Actor.Ref(),
		string(e.Action),
		e.Module,
		e.Details,
		string(e.Risk),
		timeToPgTimestamptz(e.At),
		e.Fingerprint,
		e.PrevFingerprint,
	)

	return err
}

// Last returns the newest chain entry, or nil when the chain is empty. A
// non-nil tx reads within the caller's database transaction.
func (r *AuditRepository) Last(ctx context.Context, tx usecase.Transaction) (*domain.AuditEntry, error) {
	q := conn(r.pool, tx)

	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		ORDER BY seq DESC
		LIMIT 1
	`

	e, err := scanAuditEntry(q.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return e, nil
}

// List returns entries with seq greater than afterSeq in seq order, at most
// limit rows.
func (r *AuditRepository) List(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditEntries(rows)
}

// Query retrieves entries matching the filter, in seq order.
func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE 1=1
	`
	args := []any{}

	next := func() string {
		return "$" + strconv.Itoa(len(args))
	}

	if filter.ActorRef != "" {
		args = append(args, filter.ActorRef)
		query += ` AND actor_ref = ` + next()
	}

	if filter.Action != "" {
		args = append(args, string(filter.Action))
		query += ` AND action = ` + next()
	}

	if filter.Risk != "" {
		args = append(args, string(filter.Risk))
		query += ` AND risk = ` + next()
	}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND at >= ` + next()
	}

	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND at <= ` + next()
	}

	query += ` ORDER BY seq`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT ` + next()
	}

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + next()
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditEntries(rows)
}

func collectAuditEntries(rows pgx.Rows) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanAuditEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var e domain.AuditEntry
	var actorRef, action, risk string
	var at pgtype.Timestamptz

	err := row.Scan(
		&e.ID,
		&e.Seq,
		&actorRef,
		&action,
		&e.Module,
		&e.Details,
		&risk,
		&at,
		&e.Fingerprint,
		&e.PrevFingerprint,
	)
	if err != nil {
		return nil, err
	}

	e.Actor, err = domain.ParseActorRef(actorRef)
	if err != nil {
		return nil, err
	}

	e.Action = domain.ActionKind(action)
	e.Risk = domain.RiskLevel(risk)
	e.At = at.Time.UTC()

	return &e, nil
}
