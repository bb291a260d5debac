package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDisputeAlreadyOpen signals the job already has an open case.
	ErrDisputeAlreadyOpen = errors.New("dispute: already open for job")
	// ErrNoOpenDispute signals resolution against a job with no open case.
	ErrNoOpenDispute = errors.New("dispute: no open case for job")
)

const caseColumns = `id::text, job_id::text, opened_by::text, reason, status::text, resolution::text,
	release_amount, refund_amount, resolved_by::text, created_at, resolved_at`

// Repository persists dispute cases inside the caller's transaction.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert opens a case. The partial unique index on open cases turns a
// concurrent double-open into ErrDisputeAlreadyOpen.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, jobID, reason string, openedBy *string) (Case, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO disputes (job_id, reason, opened_by)
		VALUES ($1, $2, $3)
		RETURNING %s
	`, caseColumns)

	c, err := scanCase(tx.QueryRow(ctx, insertSQL, jobID, reason, openedBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Case{}, ErrDisputeAlreadyOpen
		}
		return Case{}, fmt.Errorf("dispute: insert: %w", err)
	}
	return c, nil
}

// GetOpenForUpdate loads and locks the job's open case.
func (r *Repository) GetOpenForUpdate(ctx context.Context, tx pgx.Tx, jobID string) (Case, error) {
	selectSQL := fmt.Sprintf(`
		SELECT %s FROM disputes WHERE job_id = $1 AND status = 'open' FOR UPDATE
	`, caseColumns)

	c, err := scanCase(tx.QueryRow(ctx, selectSQL, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNoOpenDispute
		}
		return Case{}, fmt.Errorf("dispute: load open case: %w", err)
	}
	return c, nil
}

// MarkResolved closes the case with the applied action and amounts.
func (r *Repository) MarkResolved(ctx context.Context, tx pgx.Tx, caseID string, action Action, release, refund int64, resolvedBy string) error {
	const updateSQL = `
		UPDATE disputes
		SET status = 'resolved',
		    resolution = $2::dispute_resolution,
		    release_amount = $3,
		    refund_amount = $4,
		    resolved_by = $5,
		    resolved_at = now()
		WHERE id = $1 AND status = 'open'
	`
	tag, err := tx.Exec(ctx, updateSQL, caseID, action, release, refund, resolvedBy)
	if err != nil {
		return fmt.Errorf("dispute: mark resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOpenDispute
	}
	return nil
}

// ListByJob returns a job's cases, newest first.
func (r *Repository) ListByJob(ctx context.Context, q Querier, jobID string) ([]Case, error) {
	selectSQL := fmt.Sprintf(`
		SELECT %s FROM disputes WHERE job_id = $1 ORDER BY created_at DESC
	`, caseColumns)

	rows, err := q.Query(ctx, selectSQL, jobID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Case, 0, 2)
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.JobID, &c.OpenedBy, &c.Reason, &c.Status, &c.Resolution,
			&c.ReleaseAmount, &c.RefundAmount, &c.ResolvedBy, &c.CreatedAt, &c.ResolvedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanCase(row pgx.Row) (Case, error) {
	var c Case
	err := row.Scan(
		&c.ID,
		&c.JobID,
		&c.OpenedBy,
		&c.Reason,
		&c.Status,
		&c.Resolution,
		&c.ReleaseAmount,
		&c.RefundAmount,
		&c.ResolvedBy,
		&c.CreatedAt,
		&c.ResolvedAt,
	)
	if err != nil {
		return Case{}, err
	}
	return c, nil
}
