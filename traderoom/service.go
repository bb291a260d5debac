package traderoom

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retouchflow/auth"
	"retouchflow/events"
)

var (
	// ErrJobNotFound signals the session's job does not exist.
	ErrJobNotFound = errors.New("traderoom: job not found")
	// ErrJobFrozen signals the session is not open for this message.
	ErrJobFrozen = errors.New("traderoom: job is not in an active trade state")
	// ErrRoleNotPermitted signals the actor may not post this message kind.
	ErrRoleNotPermitted = errors.New("traderoom: role not permitted for message kind")
	// ErrUnknownKind signals a message kind outside the known set.
	ErrUnknownKind = errors.New("traderoom: unknown message kind")
)

// capabilities is the (role, message kind) permission table. Transition kinds
// listed here are additionally guarded by the job state machine itself.
var capabilities = map[Kind]map[auth.Role]bool{
	KindChat:                 {auth.RoleBuyer: true, auth.RoleSeller: true, auth.RoleSupport: true},
	KindDelivery:             {auth.RoleSeller: true},
	KindRevisionRequest:      {auth.RoleBuyer: true},
	KindPaidRevisionProposal: {auth.RoleSeller: true},
	KindSupportNote:          {auth.RoleSupport: true},
}

// Transitions is the slice of the job state machine the trade room delegates
// to. The session never transitions jobs itself.
type Transitions interface {
	SubmitDelivery(ctx context.Context, actor auth.Actor, jobID, payloadRef, note string) error
	RequestRevision(ctx context.Context, actor auth.Actor, jobID, note string) error
	ProposePaidRevision(ctx context.Context, actor auth.Actor, jobID string, extraAmount int64, note string) error
}

// Outbox records events inside the caller's transaction.
type Outbox interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// Service is the role-checked front door to a job's trade room. A session
// exists only while the bound job is in an active trade state; the session
// holds no state of its own beyond the message log.
type Service struct {
	pool   *pgxpool.Pool
	repo   *Repository
	jobs   Transitions
	outbox Outbox
}

func NewService(pool *pgxpool.Pool, repo *Repository, jobs Transitions, outbox Outbox) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{pool: pool, repo: repo, jobs: jobs, outbox: outbox}
}

// PostMessageParams carries one message post. ExtraAmount is only meaningful
// for paid-revision proposals.
type PostMessageParams struct {
	JobID       string
	Kind        Kind
	Body        string
	PayloadRef  string
	ExtraAmount int64
}

// PostMessage accepts a message from the buyer, seller, or support actor.
// Kinds that correspond to job transitions are delegated to the state
// machine, which appends the message and transitions in one transaction.
func (s *Service) PostMessage(ctx context.Context, actor auth.Actor, params PostMessageParams) error {
	if !params.Kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownKind, params.Kind)
	}
	if !capabilities[params.Kind][actor.Role] {
		return ErrRoleNotPermitted
	}

	switch params.Kind {
	case KindDelivery:
		return s.jobs.SubmitDelivery(ctx, actor, params.JobID, params.PayloadRef, params.Body)
	case KindRevisionRequest:
		return s.jobs.RequestRevision(ctx, actor, params.JobID, params.Body)
	case KindPaidRevisionProposal:
		return s.jobs.ProposePaidRevision(ctx, actor, params.JobID, params.ExtraAmount, params.Body)
	}

	return s.appendDirect(ctx, actor, params)
}

// appendDirect handles log-only kinds: chat and support notes.
func (s *Service) appendDirect(ctx context.Context, actor auth.Actor, params PostMessageParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("traderoom: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status   string
		buyerID  string
		sellerID *string
	)
	err = tx.QueryRow(ctx, `
		SELECT j.status::text, j.buyer_id::text, e.seller_id::text
		FROM jobs j
		LEFT JOIN entries e ON e.id = j.hired_entry_id
		WHERE j.id = $1
		FOR UPDATE OF j
	`, params.JobID).Scan(&status, &buyerID, &sellerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrJobNotFound
		}
		return fmt.Errorf("traderoom: load job: %w", err)
	}

	switch status {
	case "in_trade", "delivered", "revision_requested":
	case "disputed":
		// Disputed sessions are support-only.
		if actor.Role != auth.RoleSupport {
			return ErrJobFrozen
		}
	default:
		return ErrJobFrozen
	}

	switch actor.Role {
	case auth.RoleBuyer:
		if actor.ID != buyerID {
			return ErrRoleNotPermitted
		}
	case auth.RoleSeller:
		if sellerID == nil || actor.ID != *sellerID {
			return ErrRoleNotPermitted
		}
	}

	msg, err := s.repo.Append(ctx, tx, AppendParams{
		JobID:      params.JobID,
		SenderID:   actor.ID,
		Kind:       params.Kind,
		Body:       params.Body,
		PayloadRef: params.PayloadRef,
	})
	if err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicTradeMessage, map[string]any{
		"job_id": msg.JobID,
		"seq":    msg.Seq,
		"kind":   msg.Kind,
		"sender": actor.ID,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("traderoom: commit message: %w", err)
	}
	return nil
}

// ListMessages reads the job's log back in commit order.
func (s *Service) ListMessages(ctx context.Context, jobID string) ([]Message, error) {
	return s.repo.List(ctx, s.pool, jobID)
}
