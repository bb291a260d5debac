package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reader serves the read paths. Reads never take row locks; they see only
// committed transitions, so a half-applied hire is never observable.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// GetJob fetches one job.
func (r *Reader) GetJob(ctx context.Context, jobID string) (Job, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)

	j, err := scanJob(r.pool.QueryRow(ctx, selectSQL, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("job: get: %w", err)
	}
	return j, nil
}

// ListJobs pages through jobs, newest first.
func (r *Reader) ListJobs(ctx context.Context, filters ListFilters) ([]Job, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE 1=1`, jobColumns)
	args := make([]any, 0, 4)
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d::job_status", len(args))
	}
	if filters.BuyerID != "" {
		args = append(args, filters.BuyerID)
		query += fmt.Sprintf(" AND buyer_id = $%d", len(args))
	}
	args = append(args, filters.PageSize)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, (filters.Page-1)*filters.PageSize)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	defer rows.Close()

	out := make([]Job, 0, filters.PageSize)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job: scan list: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: iterate list: %w", err)
	}
	return out, nil
}

// ListEntries returns a job's bids in submission order.
func (r *Reader) ListEntries(ctx context.Context, jobID string) ([]Entry, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM entries WHERE job_id = $1 ORDER BY created_at`, entryColumns)

	rows, err := r.pool.Query(ctx, selectSQL, jobID)
	if err != nil {
		return nil, fmt.Errorf("job: list entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 8)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.JobID, &e.SellerID, &e.Price, &e.Note, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("job: scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: iterate entries: %w", err)
	}
	return out, nil
}
