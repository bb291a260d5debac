package job

import "time"

// Status is the contract lifecycle state of a job.
type Status string

const (
	StatusOpen              Status = "open"
	StatusHired             Status = "hired"
	StatusConfirmed         Status = "confirmed"
	StatusInTrade           Status = "in_trade"
	StatusDelivered         Status = "delivered"
	StatusRevisionRequested Status = "revision_requested"
	StatusDisputed          Status = "disputed"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
)

// EntryStatus is the lifecycle state of a seller's bid.
type EntryStatus string

const (
	EntrySubmitted EntryStatus = "submitted"
	EntryWithdrawn EntryStatus = "withdrawn"
	EntryHired     EntryStatus = "hired"
	EntryRejected  EntryStatus = "rejected"
)

// Job mirrors the jobs table columns touched by the service.
// PendingExtra holds a seller's paid-revision ask awaiting buyer acceptance;
// no coins are locked until the buyer accepts.
type Job struct {
	ID             string
	BuyerID        string
	Title          string
	Brief          string
	Price          int64
	Status         Status
	HiredEntryID   *string
	RevisionRounds int
	PendingExtra   *int64
	CreatedAt      time.Time
	HiredAt        *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// Entry mirrors one entries row: a seller's bid on an open job.
type Entry struct {
	ID        string
	JobID     string
	SellerID  string
	Price     int64
	Note      string
	Status    EntryStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostJobParams carries a new job posting.
type PostJobParams struct {
	Title string
	Brief string
	Price int64
}

// SubmitEntryParams carries a new bid.
type SubmitEntryParams struct {
	JobID string
	Price int64
	Note  string
}

// ListFilters narrows job listings.
type ListFilters struct {
	Status   Status
	BuyerID  string
	Page     int
	PageSize int
}
