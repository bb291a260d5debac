package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines the data access required by the service. Mutating
// methods take the caller's transaction; the job row lock acquired by
// GetJobForUpdate serializes every write against the same job.
type Repository interface {
	InsertJob(ctx context.Context, tx pgx.Tx, buyerID string, params PostJobParams) (Job, error)
	GetJobForUpdate(ctx context.Context, tx pgx.Tx, jobID string) (Job, error)
	SetStatus(ctx context.Context, tx pgx.Tx, jobID string, status Status) error
	MarkHired(ctx context.Context, tx pgx.Tx, jobID, entryID string) error
	SetPendingExtra(ctx context.Context, tx pgx.Tx, jobID string, extra *int64) error
	BumpRevisionRounds(ctx context.Context, tx pgx.Tx, jobID string) (int, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, sellerID string, params SubmitEntryParams) (Entry, error)
	GetEntryForUpdate(ctx context.Context, tx pgx.Tx, entryID string) (Entry, error)
	GetHiredEntry(ctx context.Context, tx pgx.Tx, jobID string) (Entry, error)
	SetEntryStatus(ctx context.Context, tx pgx.Tx, entryID string, status EntryStatus) error
	RejectSiblings(ctx context.Context, tx pgx.Tx, jobID, keepEntryID string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const jobColumns = `id::text, buyer_id::text, title, brief, price, status::text, hired_entry_id::text,
	revision_rounds, pending_extra, created_at, hired_at, completed_at, updated_at`

const entryColumns = `id::text, job_id::text, seller_id::text, price, note, status::text, created_at, updated_at`

func (r *PGRepository) InsertJob(ctx context.Context, tx pgx.Tx, buyerID string, params PostJobParams) (Job, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO jobs (buyer_id, title, brief, price)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, jobColumns)

	j, err := scanJob(tx.QueryRow(ctx, insertSQL, buyerID, params.Title, params.Brief, params.Price))
	if err != nil {
		return Job{}, fmt.Errorf("job: insert: %w", err)
	}
	return j, nil
}

func (r *PGRepository) GetJobForUpdate(ctx context.Context, tx pgx.Tx, jobID string) (Job, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1 FOR UPDATE`, jobColumns)

	j, err := scanJob(tx.QueryRow(ctx, selectSQL, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("job: load for update: %w", err)
	}
	return j, nil
}

func (r *PGRepository) SetStatus(ctx context.Context, tx pgx.Tx, jobID string, status Status) error {
	const updateSQL = `
		UPDATE jobs
		SET status = $2::job_status,
		    completed_at = CASE WHEN $2 IN ('completed', 'cancelled', 'refunded') THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, updateSQL, jobID, status)
	if err != nil {
		return fmt.Errorf("job: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PGRepository) MarkHired(ctx context.Context, tx pgx.Tx, jobID, entryID string) error {
	const updateSQL = `
		UPDATE jobs
		SET status = 'hired', hired_entry_id = $2, hired_at = now(), updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateSQL, jobID, entryID); err != nil {
		return fmt.Errorf("job: mark hired: %w", err)
	}
	return nil
}

func (r *PGRepository) SetPendingExtra(ctx context.Context, tx pgx.Tx, jobID string, extra *int64) error {
	if _, err := tx.Exec(ctx, `UPDATE jobs SET pending_extra = $2, updated_at = now() WHERE id = $1`, jobID, extra); err != nil {
		return fmt.Errorf("job: set pending extra: %w", err)
	}
	return nil
}

func (r *PGRepository) BumpRevisionRounds(ctx context.Context, tx pgx.Tx, jobID string) (int, error) {
	var rounds int
	err := tx.QueryRow(ctx, `
		UPDATE jobs SET revision_rounds = revision_rounds + 1, updated_at = now()
		WHERE id = $1
		RETURNING revision_rounds
	`, jobID).Scan(&rounds)
	if err != nil {
		return 0, fmt.Errorf("job: bump revision rounds: %w", err)
	}
	return rounds, nil
}

func (r *PGRepository) InsertEntry(ctx context.Context, tx pgx.Tx, sellerID string, params SubmitEntryParams) (Entry, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO entries (job_id, seller_id, price, note)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, entryColumns)

	e, err := scanEntry(tx.QueryRow(ctx, insertSQL, params.JobID, sellerID, params.Price, params.Note))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrDuplicateEntry
		}
		return Entry{}, fmt.Errorf("job: insert entry: %w", err)
	}
	return e, nil
}

func (r *PGRepository) GetEntryForUpdate(ctx context.Context, tx pgx.Tx, entryID string) (Entry, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM entries WHERE id = $1 FOR UPDATE`, entryColumns)

	e, err := scanEntry(tx.QueryRow(ctx, selectSQL, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("job: load entry for update: %w", err)
	}
	return e, nil
}

func (r *PGRepository) GetHiredEntry(ctx context.Context, tx pgx.Tx, jobID string) (Entry, error) {
	selectSQL := fmt.Sprintf(`
		SELECT %s FROM entries
		WHERE id = (SELECT hired_entry_id FROM jobs WHERE id = $1)
	`, entryColumns)

	e, err := scanEntry(tx.QueryRow(ctx, selectSQL, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotHired
		}
		return Entry{}, fmt.Errorf("job: load hired entry: %w", err)
	}
	return e, nil
}

func (r *PGRepository) SetEntryStatus(ctx context.Context, tx pgx.Tx, entryID string, status EntryStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE entries SET status = $2::entry_status, updated_at = now() WHERE id = $1`, entryID, status)
	if err != nil {
		return fmt.Errorf("job: set entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *PGRepository) RejectSiblings(ctx context.Context, tx pgx.Tx, jobID, keepEntryID string) error {
	const updateSQL = `
		UPDATE entries SET status = 'rejected', updated_at = now()
		WHERE job_id = $1 AND id <> $2 AND status = 'submitted'
	`
	if _, err := tx.Exec(ctx, updateSQL, jobID, keepEntryID); err != nil {
		return fmt.Errorf("job: reject siblings: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.BuyerID,
		&j.Title,
		&j.Brief,
		&j.Price,
		&j.Status,
		&j.HiredEntryID,
		&j.RevisionRounds,
		&j.PendingExtra,
		&j.CreatedAt,
		&j.HiredAt,
		&j.CompletedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	return j, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID,
		&e.JobID,
		&e.SellerID,
		&e.Price,
		&e.Note,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}
