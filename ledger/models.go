package ledger

import "time"

// Direction classifies how a ledger row moves coins relative to its user.
// Lock debits the user; release, refund, and credit all credit the user.
type Direction string

const (
	DirectionLock    Direction = "lock"
	DirectionRelease Direction = "release"
	DirectionRefund  Direction = "refund"
	DirectionCredit  Direction = "credit"
)

// Reason is the closed enumeration tagging why a ledger row exists.
type Reason string

const (
	ReasonHireLock          Reason = "hire_lock"
	ReasonRevisionFee       Reason = "revision_fee"
	ReasonCompletionRelease Reason = "completion_release"
	ReasonDisputeRelease    Reason = "dispute_release"
	ReasonDisputeRefund     Reason = "dispute_refund"
	ReasonCancelRefund      Reason = "cancel_refund"
	ReasonPurchaseTopup     Reason = "purchase_topup"
	ReasonAdminAdjustment   Reason = "admin_adjustment"
)

// Valid reports whether the reason belongs to the closed enumeration.
func (r Reason) Valid() bool {
	switch r {
	case ReasonHireLock, ReasonRevisionFee, ReasonCompletionRelease,
		ReasonDisputeRelease, ReasonDisputeRefund, ReasonCancelRefund,
		ReasonPurchaseTopup, ReasonAdminAdjustment:
		return true
	default:
		return false
	}
}

// Transaction mirrors one immutable escrow_transactions row.
type Transaction struct {
	ID        int64
	JobID     *string
	UserID    string
	Direction Direction
	Amount    int64
	Reason    Reason
	CreatedAt time.Time
}
