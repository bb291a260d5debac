package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const claimBatchSize = 32

// Relay drains the outbox and hands rows to the Publisher in id order.
// At-least-once: a crash between publish and mark re-publishes on restart.
type Relay struct {
	pool        *pgxpool.Pool
	pub         Publisher
	log         *slog.Logger
	interval    time.Duration
	maxAttempts int
}

func NewRelay(pool *pgxpool.Pool, pub Publisher, log *slog.Logger, interval time.Duration, maxAttempts int) *Relay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &Relay{pool: pool, pub: pub, log: log, interval: interval, maxAttempts: maxAttempts}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for {
			n, err := r.drainBatch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Error("outbox drain failed", slog.Any("error", err))
				break
			}
			if n < claimBatchSize {
				break
			}
		}
	}
}

type pendingRow struct {
	id       int64
	topic    string
	payload  []byte
	attempts int
}

func (r *Relay) drainBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("events: begin relay tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, claimBatchSize)
	if err != nil {
		return 0, fmt.Errorf("events: claim pending: %w", err)
	}

	batch := make([]pendingRow, 0, claimBatchSize)
	for rows.Next() {
		var p pendingRow
		if err := rows.Scan(&p.id, &p.topic, &p.payload, &p.attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("events: scan pending: %w", err)
		}
		batch = append(batch, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("events: iterate pending: %w", err)
	}

	for _, p := range batch {
		if err := r.pub.Publish(ctx, p.topic, p.payload); err != nil {
			r.log.Warn("publish failed",
				slog.Int64("outbox_id", p.id),
				slog.String("topic", p.topic),
				slog.Any("error", err),
			)
			status := "pending"
			if p.attempts+1 >= r.maxAttempts {
				status = "dead"
			}
			if _, err := tx.Exec(ctx, `
				UPDATE outbox SET attempts = attempts + 1, last_attempt = now(), status = $2 WHERE id = $1
			`, p.id, status); err != nil {
				return 0, fmt.Errorf("events: record attempt: %w", err)
			}
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'processed', attempts = attempts + 1, last_attempt = now() WHERE id = $1
		`, p.id); err != nil {
			return 0, fmt.Errorf("events: mark processed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("events: commit relay tx: %w", err)
	}

	return len(batch), nil
}
