package httpapi

import (
	"time"

	"retouchflow/auth"
	"retouchflow/dispute"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/traderoom"
)

type jobDTO struct {
	ID             string     `json:"id"`
	BuyerID        string     `json:"buyer_id"`
	Title          string     `json:"title"`
	Brief          string     `json:"brief"`
	Price          int64      `json:"price"`
	Status         string     `json:"status"`
	HiredEntryID   *string    `json:"hired_entry_id,omitempty"`
	RevisionRounds int        `json:"revision_rounds"`
	PendingExtra   *int64     `json:"pending_extra,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	HiredAt        *time.Time `json:"hired_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toJobDTO(j job.Job) jobDTO {
	return jobDTO{
		ID:             j.ID,
		BuyerID:        j.BuyerID,
		Title:          j.Title,
		Brief:          j.Brief,
		Price:          j.Price,
		Status:         string(j.Status),
		HiredEntryID:   j.HiredEntryID,
		RevisionRounds: j.RevisionRounds,
		PendingExtra:   j.PendingExtra,
		CreatedAt:      j.CreatedAt,
		HiredAt:        j.HiredAt,
		CompletedAt:    j.CompletedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

type entryDTO struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	SellerID  string    `json:"seller_id"`
	Price     int64     `json:"price"`
	Note      string    `json:"note,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toEntryDTO(e job.Entry) entryDTO {
	return entryDTO{
		ID:        e.ID,
		JobID:     e.JobID,
		SellerID:  e.SellerID,
		Price:     e.Price,
		Note:      e.Note,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type messageDTO struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	Seq        int       `json:"seq"`
	SenderID   *string   `json:"sender_id,omitempty"`
	Kind       string    `json:"kind"`
	Body       string    `json:"body,omitempty"`
	PayloadRef *string   `json:"payload_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toMessageDTO(m traderoom.Message) messageDTO {
	return messageDTO{
		ID:         m.ID,
		JobID:      m.JobID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		Kind:       string(m.Kind),
		Body:       m.Body,
		PayloadRef: m.PayloadRef,
		CreatedAt:  m.CreatedAt,
	}
}

type caseDTO struct {
	ID            string     `json:"id"`
	JobID         string     `json:"job_id"`
	OpenedBy      *string    `json:"opened_by,omitempty"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	Resolution    *string    `json:"resolution,omitempty"`
	ReleaseAmount *int64     `json:"release_amount,omitempty"`
	RefundAmount  *int64     `json:"refund_amount,omitempty"`
	ResolvedBy    *string    `json:"resolved_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toCaseDTO(c dispute.Case) caseDTO {
	d := caseDTO{
		ID:            c.ID,
		JobID:         c.JobID,
		OpenedBy:      c.OpenedBy,
		Reason:        c.Reason,
		Status:        string(c.Status),
		ReleaseAmount: c.ReleaseAmount,
		RefundAmount:  c.RefundAmount,
		ResolvedBy:    c.ResolvedBy,
		CreatedAt:     c.CreatedAt,
		ResolvedAt:    c.ResolvedAt,
	}
	if c.Resolution != nil {
		res := string(*c.Resolution)
		d.Resolution = &res
	}
	return d
}

type transactionDTO struct {
	ID        int64     `json:"id"`
	JobID     *string   `json:"job_id,omitempty"`
	UserID    string    `json:"user_id"`
	Direction string    `json:"direction"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransactionDTO(t ledger.Transaction) transactionDTO {
	return transactionDTO{
		ID:        t.ID,
		JobID:     t.JobID,
		UserID:    t.UserID,
		Direction: string(t.Direction),
		Amount:    t.Amount,
		Reason:    string(t.Reason),
		CreatedAt: t.CreatedAt,
	}
}

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	AvatarRef *string   `json:"avatar_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u auth.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		AvatarRef: u.AvatarRef,
		CreatedAt: u.CreatedAt,
	}
}
