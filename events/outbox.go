package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Topics published by the core. One topic per observable transition so sinks
// can bind selectively.
const (
	TopicJobPosted               = "job.posted"
	TopicEntrySubmitted          = "job.entry_submitted"
	TopicEntryWithdrawn          = "job.entry_withdrawn"
	TopicJobHired                = "job.hired"
	TopicJobConfirmed            = "job.confirmed"
	TopicTradeOpened             = "job.trade_opened"
	TopicJobDelivered            = "job.delivered"
	TopicRevisionRequested       = "job.revision_requested"
	TopicPaidRevisionProposed    = "job.paid_revision_proposed"
	TopicPaidRevisionAccepted    = "job.paid_revision_accepted"
	TopicJobCompleted            = "job.completed"
	TopicJobCancelled            = "job.cancelled"
	TopicJobRefunded             = "job.refunded"
	TopicDisputeOpened           = "dispute.opened"
	TopicDisputeResolved         = "dispute.resolved"
	TopicCreditApplied           = "ledger.credit_applied"
	TopicTradeMessage            = "traderoom.message"
)

// Outbox writes event rows inside the caller's transaction. Rows become
// visible to the relay only when the surrounding domain transaction commits,
// so delivery order follows commit order.
type Outbox struct{}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue appends one pending outbox row.
func (o *Outbox) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	if topic == "" {
		return fmt.Errorf("events: empty topic")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("events: enqueue outbox: %w", err)
	}
	return nil
}
