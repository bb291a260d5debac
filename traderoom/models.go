package traderoom

import "time"

// Kind classifies a trade-room message. Delivery, revision-request, and
// paid-revision kinds double as job transitions; chat and support notes are
// log-only.
type Kind string

const (
	KindChat                 Kind = "chat"
	KindDelivery             Kind = "delivery"
	KindRevisionRequest      Kind = "revision_request"
	KindPaidRevisionProposal Kind = "paid_revision_proposal"
	KindSupportNote          Kind = "support_note"
)

// Valid reports whether the kind belongs to the closed enumeration.
func (k Kind) Valid() bool {
	switch k {
	case KindChat, KindDelivery, KindRevisionRequest, KindPaidRevisionProposal, KindSupportNote:
		return true
	default:
		return false
	}
}

// Message mirrors one trade_messages row. Seq is the per-job commit order.
type Message struct {
	ID         int64
	JobID      string
	Seq        int
	SenderID   *string
	Kind       Kind
	Body       string
	PayloadRef *string
	CreatedAt  time.Time
}

// AppendParams carries one message append. PayloadRef is an opaque pointer
// into the external asset store; the core never interprets it.
type AppendParams struct {
	JobID      string
	SenderID   string
	Kind       Kind
	Body       string
	PayloadRef string
}
