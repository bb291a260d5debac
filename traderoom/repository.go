package traderoom

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository owns the append-only message log. Append assigns the next
// per-job seq; the caller must hold the job row lock so seq assignment is
// serialized with every other write against the same job.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Append inserts one message with the next seq for its job.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, params AppendParams) (Message, error) {
	if params.JobID == "" {
		return Message{}, fmt.Errorf("traderoom: append missing job id")
	}
	if !params.Kind.Valid() {
		return Message{}, fmt.Errorf("traderoom: unknown message kind %q", params.Kind)
	}

	var seq int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM trade_messages WHERE job_id = $1
	`, params.JobID).Scan(&seq); err != nil {
		return Message{}, fmt.Errorf("traderoom: next seq: %w", err)
	}

	var sender any
	if params.SenderID != "" {
		sender = params.SenderID
	}
	var payloadRef any
	if params.PayloadRef != "" {
		payloadRef = params.PayloadRef
	}

	const insertSQL = `
		INSERT INTO trade_messages (job_id, seq, sender_id, kind, body, payload_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, job_id::text, seq, sender_id::text, kind::text, body, payload_ref, created_at
	`

	var msg Message
	err := tx.QueryRow(ctx, insertSQL, params.JobID, seq, sender, params.Kind, params.Body, payloadRef).
		Scan(&msg.ID, &msg.JobID, &msg.Seq, &msg.SenderID, &msg.Kind, &msg.Body, &msg.PayloadRef, &msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("traderoom: insert message: %w", err)
	}
	return msg, nil
}

// List returns the job's messages in seq order.
func (r *Repository) List(ctx context.Context, q Querier, jobID string) ([]Message, error) {
	const listSQL = `
		SELECT id, job_id::text, seq, sender_id::text, kind::text, body, payload_ref, created_at
		FROM trade_messages
		WHERE job_id = $1
		ORDER BY seq
	`
	rows, err := q.Query(ctx, listSQL, jobID)
	if err != nil {
		return nil, fmt.Errorf("traderoom: list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 16)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.JobID, &msg.Seq, &msg.SenderID, &msg.Kind, &msg.Body, &msg.PayloadRef, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("traderoom: scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("traderoom: iterate messages: %w", err)
	}
	return out, nil
}
