package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrInsufficientFunds signals the user's available balance cannot cover a lock.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrNoSuchLock signals that the job has no outstanding locked amount.
	ErrNoSuchLock = errors.New("ledger: no outstanding lock for job")
	// ErrAmountMismatch signals the requested amount exceeds the outstanding lock.
	ErrAmountMismatch = errors.New("ledger: amount exceeds outstanding lock")
	// ErrInvalidAmount signals a non-positive amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrInvalidReason signals a reason outside the closed enumeration.
	ErrInvalidReason = errors.New("ledger: unknown reason code")
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so projections can
// run inside or outside a transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Repository writes and projects the append-only escrow ledger. All mutating
// methods take the caller's transaction so that a job transition and its
// ledger movement commit or roll back together.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Lock reserves amount coins from userID against jobID. The balance check and
// the lock insert are serialized per user with an advisory transaction lock,
// so two concurrent locks against the same balance cannot both pass the check.
func (r *Repository) Lock(ctx context.Context, tx pgx.Tx, userID, jobID string, amount int64, reason Reason) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !reason.Valid() {
		return ErrInvalidReason
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
		return fmt.Errorf("ledger: acquire user lock: %w", err)
	}

	balance, err := r.Balance(ctx, tx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	return r.insert(ctx, tx, &jobID, userID, DirectionLock, amount, reason)
}

// Release moves amount coins from jobID's outstanding lock to toUserID.
func (r *Repository) Release(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, reason Reason) error {
	return r.moveFromLock(ctx, tx, jobID, toUserID, amount, DirectionRelease, reason)
}

// Refund moves amount coins from jobID's outstanding lock back to toUserID.
func (r *Repository) Refund(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, reason Reason) error {
	return r.moveFromLock(ctx, tx, jobID, toUserID, amount, DirectionRefund, reason)
}

// Credit appends an unconditional credit, e.g. a coin purchase top-up.
func (r *Repository) Credit(ctx context.Context, tx pgx.Tx, userID string, amount int64, reason Reason) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !reason.Valid() {
		return ErrInvalidReason
	}
	return r.insert(ctx, tx, nil, userID, DirectionCredit, amount, reason)
}

func (r *Repository) moveFromLock(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, direction Direction, reason Reason) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !reason.Valid() {
		return ErrInvalidReason
	}

	outstanding, err := r.Outstanding(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if outstanding <= 0 {
		return ErrNoSuchLock
	}
	if amount > outstanding {
		return ErrAmountMismatch
	}

	return r.insert(ctx, tx, &jobID, toUserID, direction, amount, reason)
}

func (r *Repository) insert(ctx context.Context, tx pgx.Tx, jobID *string, userID string, direction Direction, amount int64, reason Reason) error {
	const insertSQL = `
		INSERT INTO escrow_transactions (job_id, user_id, direction, amount, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insertSQL, jobID, userID, direction, amount, reason); err != nil {
		return fmt.Errorf("ledger: insert %s: %w", direction, err)
	}
	return nil
}

// Balance projects the user's available coins: credits plus releases and
// refunds received, minus locks placed.
func (r *Repository) Balance(ctx context.Context, q Querier, userID string) (int64, error) {
	const balanceSQL = `
		SELECT COALESCE(SUM(CASE WHEN direction = 'lock' THEN -amount ELSE amount END), 0)
		FROM escrow_transactions
		WHERE user_id = $1
	`
	var balance int64
	if err := q.QueryRow(ctx, balanceSQL, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger: project balance: %w", err)
	}
	return balance, nil
}

// Outstanding projects the coins still held in escrow for a job: locks minus
// releases and refunds. A negative result means the ledger itself is corrupt.
func (r *Repository) Outstanding(ctx context.Context, q Querier, jobID string) (int64, error) {
	const outstandingSQL = `
		SELECT COALESCE(SUM(CASE
			WHEN direction = 'lock' THEN amount
			WHEN direction IN ('release', 'refund') THEN -amount
			ELSE 0 END), 0)
		FROM escrow_transactions
		WHERE job_id = $1
	`
	var outstanding int64
	if err := q.QueryRow(ctx, outstandingSQL, jobID).Scan(&outstanding); err != nil {
		return 0, fmt.Errorf("ledger: project outstanding: %w", err)
	}
	if outstanding < 0 {
		return 0, fmt.Errorf("ledger: escrow group for job %s is negative (%d)", jobID, outstanding)
	}
	return outstanding, nil
}

// ListByUser returns the user's ledger rows in append order.
func (r *Repository) ListByUser(ctx context.Context, q Querier, userID string) ([]Transaction, error) {
	const listSQL = `
		SELECT id, job_id::text, user_id::text, direction::text, amount, reason::text, created_at
		FROM escrow_transactions
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, listSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list by user: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0, 16)
	for rows.Next() {
		var txn Transaction
		if err := rows.Scan(&txn.ID, &txn.JobID, &txn.UserID, &txn.Direction, &txn.Amount, &txn.Reason, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate transactions: %w", err)
	}
	return out, nil
}
