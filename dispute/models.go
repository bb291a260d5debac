package dispute

import "time"

// Status represents the lifecycle of a dispute case.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Action is the privileged resolution applied to a disputed job.
type Action string

const (
	ActionRefundBuyer     Action = "refund_buyer"
	ActionReleaseToSeller Action = "release_to_seller"
	ActionSplit           Action = "split"
)

// ReasonModerationFlag tags disputes forced open by the external
// moderation/provenance collaborator.
const ReasonModerationFlag = "moderation_flag"

// Case mirrors the disputes table.
type Case struct {
	ID            string
	JobID         string
	OpenedBy      *string
	Reason        string
	Status        Status
	Resolution    *Action
	ReleaseAmount *int64
	RefundAmount  *int64
	ResolvedBy    *string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// ResolveParams carries a support resolution. SellerShareBps is only
// consulted for split actions.
type ResolveParams struct {
	JobID          string
	Action         Action
	SellerShareBps int
}
