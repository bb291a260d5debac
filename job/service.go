package job

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"retouchflow/auth"
	"retouchflow/events"
	"retouchflow/ledger"
	"retouchflow/traderoom"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EscrowLedger is the slice of the coin ledger the state machine drives.
// Every call runs inside the job's transaction so a failed transition never
// leaves a ledger row behind.
type EscrowLedger interface {
	Lock(ctx context.Context, tx pgx.Tx, userID, jobID string, amount int64, reason ledger.Reason) error
	Release(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, reason ledger.Reason) error
	Refund(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, reason ledger.Reason) error
	Outstanding(ctx context.Context, q ledger.Querier, jobID string) (int64, error)
}

// MessageLog appends trade-room messages for transitions that double as
// session activity. The job owns its message log.
type MessageLog interface {
	Append(ctx context.Context, tx pgx.Tx, params traderoom.AppendParams) (traderoom.Message, error)
}

// Outbox records events inside the caller's transaction.
type Outbox interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// Config carries contract-lifecycle policy.
type Config struct {
	MaxRevisionRounds int
}

// Service is the job state machine. All mutating operations serialize on the
// job row lock; ledger movements and message appends share the transaction.
type Service struct {
	pool              TxBeginner
	repo              Repository
	escrow            EscrowLedger
	msgs              MessageLog
	outbox            Outbox
	maxRevisionRounds int
}

func NewService(pool TxBeginner, repo Repository, escrow EscrowLedger, msgs MessageLog, outbox Outbox, cfg Config) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	rounds := cfg.MaxRevisionRounds
	if rounds <= 0 {
		rounds = 3
	}
	return &Service{
		pool:              pool,
		repo:              repo,
		escrow:            escrow,
		msgs:              msgs,
		outbox:            outbox,
		maxRevisionRounds: rounds,
	}
}

// PostJob creates a job in the open state.
func (s *Service) PostJob(ctx context.Context, actor auth.Actor, params PostJobParams) (Job, error) {
	if actor.Role != auth.RoleBuyer {
		return Job{}, ErrRoleNotPermitted
	}
	if params.Price <= 0 || params.Title == "" {
		return Job{}, ErrInvalidSpec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.InsertJob(ctx, tx, actor.ID, params)
	if err != nil {
		return Job{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicJobPosted, map[string]any{
		"job_id":   j.ID,
		"buyer_id": j.BuyerID,
		"price":    j.Price,
	}); err != nil {
		return Job{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("job: commit post: %w", err)
	}
	return j, nil
}

// SubmitEntry records a seller's bid on an open job.
func (s *Service) SubmitEntry(ctx context.Context, actor auth.Actor, params SubmitEntryParams) (Entry, error) {
	if actor.Role != auth.RoleSeller {
		return Entry{}, ErrRoleNotPermitted
	}
	if params.Price <= 0 {
		return Entry{}, ErrInvalidSpec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, params.JobID)
	if err != nil {
		return Entry{}, err
	}
	if j.Status != StatusOpen {
		return Entry{}, ErrJobNotOpen
	}

	e, err := s.repo.InsertEntry(ctx, tx, actor.ID, params)
	if err != nil {
		return Entry{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicEntrySubmitted, map[string]any{
		"job_id":    j.ID,
		"entry_id":  e.ID,
		"seller_id": e.SellerID,
		"price":     e.Price,
	}); err != nil {
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, fmt.Errorf("job: commit entry: %w", err)
	}
	return e, nil
}

// WithdrawEntry retracts a submitted bid while the job is still open.
func (s *Service) WithdrawEntry(ctx context.Context, actor auth.Actor, entryID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	e, err := s.repo.GetEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleSeller || actor.ID != e.SellerID {
		return ErrRoleNotPermitted
	}
	if e.Status != EntrySubmitted {
		return ErrEntryUnavailable
	}

	if err := s.repo.SetEntryStatus(ctx, tx, entryID, EntryWithdrawn); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicEntryWithdrawn, map[string]any{
		"job_id":   e.JobID,
		"entry_id": e.ID,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit withdraw: %w", err)
	}
	return nil
}

// HireEntry hires one entry: locks the agreed price in escrow, rejects every
// sibling bid, and moves the job to hired, all in one transaction. Concurrent
// hires serialize on the job row; only the first committer succeeds.
func (s *Service) HireEntry(ctx context.Context, actor auth.Actor, jobID, entryID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleBuyer || actor.ID != j.BuyerID {
		return ErrRoleNotPermitted
	}
	if j.Status != StatusOpen {
		if j.HiredEntryID != nil {
			return ErrAlreadyHired
		}
		return ErrJobNotOpen
	}

	e, err := s.repo.GetEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return err
	}
	if e.JobID != j.ID {
		return ErrEntryNotFound
	}
	if e.Status != EntrySubmitted {
		return ErrEntryUnavailable
	}

	if err := s.escrow.Lock(ctx, tx, j.BuyerID, j.ID, e.Price, ledger.ReasonHireLock); err != nil {
		return err
	}

	if err := s.repo.RejectSiblings(ctx, tx, j.ID, e.ID); err != nil {
		return err
	}
	if err := s.repo.SetEntryStatus(ctx, tx, e.ID, EntryHired); err != nil {
		return err
	}
	if err := s.repo.MarkHired(ctx, tx, j.ID, e.ID); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicJobHired, map[string]any{
		"job_id":    j.ID,
		"entry_id":  e.ID,
		"buyer_id":  j.BuyerID,
		"seller_id": e.SellerID,
		"price":     e.Price,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit hire: %w", err)
	}
	return nil
}

// ConfirmHire is the seller's acknowledgment. The two observable
// sub-transitions (hired -> confirmed -> in_trade) commit together, opening
// the trade room.
func (s *Service) ConfirmHire(ctx context.Context, actor auth.Actor, jobID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if j.Status != StatusHired {
		return ErrNotHired
	}

	hired, err := s.repo.GetHiredEntry(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleSeller || actor.ID != hired.SellerID {
		return ErrRoleNotPermitted
	}

	if err := s.setStatus(ctx, tx, &j, StatusConfirmed); err != nil {
		return err
	}
	if err := s.setStatus(ctx, tx, &j, StatusInTrade); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicJobConfirmed, map[string]any{"job_id": j.ID}); err != nil {
		return err
	}
	if err := s.outbox.Enqueue(ctx, tx, events.TopicTradeOpened, map[string]any{"job_id": j.ID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit confirm: %w", err)
	}
	return nil
}

// SubmitDelivery records a delivery submission and moves the job to delivered.
func (s *Service) SubmitDelivery(ctx context.Context, actor auth.Actor, jobID, payloadRef, note string) error {
	if payloadRef == "" {
		return ErrInvalidSpec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if err := requireStatus(j, StatusInTrade, StatusRevisionRequested); err != nil {
		return err
	}

	hired, err := s.repo.GetHiredEntry(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleSeller || actor.ID != hired.SellerID {
		return ErrRoleNotPermitted
	}

	if err := s.setStatus(ctx, tx, &j, StatusDelivered); err != nil {
		return err
	}

	msg, err := s.msgs.Append(ctx, tx, traderoom.AppendParams{
		JobID:      j.ID,
		SenderID:   actor.ID,
		Kind:       traderoom.KindDelivery,
		Body:       note,
		PayloadRef: payloadRef,
	})
	if err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicJobDelivered, map[string]any{
		"job_id":      j.ID,
		"seq":         msg.Seq,
		"payload_ref": payloadRef,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit delivery: %w", err)
	}
	return nil
}

// RequestRevision sends a delivered job back for another round, up to the
// configured limit. Past the limit the buyer must accept or open a dispute.
func (s *Service) RequestRevision(ctx context.Context, actor auth.Actor, jobID, note string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if err := requireStatus(j, StatusDelivered); err != nil {
		return err
	}
	if actor.Role != auth.RoleBuyer || actor.ID != j.BuyerID {
		return ErrRoleNotPermitted
	}
	if j.RevisionRounds+1 > s.maxRevisionRounds {
		return ErrRevisionLimitExceeded
	}

	rounds, err := s.repo.BumpRevisionRounds(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if err := s.setStatus(ctx, tx, &j, StatusRevisionRequested); err != nil {
		return err
	}

	msg, err := s.msgs.Append(ctx, tx, traderoom.AppendParams{
		JobID:    j.ID,
		SenderID: actor.ID,
		Kind:     traderoom.KindRevisionRequest,
		Body:     note,
	})
	if err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicRevisionRequested, map[string]any{
		"job_id": j.ID,
		"seq":    msg.Seq,
		"round":  rounds,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit revision request: %w", err)
	}
	return nil
}

// ProposePaidRevision records the seller's ask for extra coins. Nothing is
// locked until the buyer accepts.
func (s *Service) ProposePaidRevision(ctx context.Context, actor auth.Actor, jobID string, extraAmount int64, note string) error {
	if extraAmount <= 0 {
		return ErrInvalidSpec
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if err := requireStatus(j, StatusDelivered, StatusRevisionRequested); err != nil {
		return err
	}

	hired, err := s.repo.GetHiredEntry(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleSeller || actor.ID != hired.SellerID {
		return ErrRoleNotPermitted
	}

	if err := s.repo.SetPendingExtra(ctx, tx, j.ID, &extraAmount); err != nil {
		return err
	}

	msg, err := s.msgs.Append(ctx, tx, traderoom.AppendParams{
		JobID:    j.ID,
		SenderID: actor.ID,
		Kind:     traderoom.KindPaidRevisionProposal,
		Body:     note,
	})
	if err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicPaidRevisionProposed, map[string]any{
		"job_id": j.ID,
		"seq":    msg.Seq,
		"extra":  extraAmount,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit paid-revision proposal: %w", err)
	}
	return nil
}

// AcceptPaidRevision locks the proposed extra amount and resumes work.
func (s *Service) AcceptPaidRevision(ctx context.Context, actor auth.Actor, jobID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if err := requireStatus(j, StatusDelivered, StatusRevisionRequested); err != nil {
		return err
	}
	if actor.Role != auth.RoleBuyer || actor.ID != j.BuyerID {
		return ErrRoleNotPermitted
	}
	if j.PendingExtra == nil {
		return ErrNoPendingProposal
	}
	extra := *j.PendingExtra

	if err := s.escrow.Lock(ctx, tx, j.BuyerID, j.ID, extra, ledger.ReasonRevisionFee); err != nil {
		return err
	}
	if err := s.repo.SetPendingExtra(ctx, tx, j.ID, nil); err != nil {
		return err
	}
	if err := s.setStatus(ctx, tx, &j, StatusInTrade); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicPaidRevisionAccepted, map[string]any{
		"job_id": j.ID,
		"extra":  extra,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit paid-revision acceptance: %w", err)
	}
	return nil
}

// AcceptDelivery completes the job and releases the full outstanding escrow
// to the seller. This is the single terminal success path outside dispute
// resolution.
func (s *Service) AcceptDelivery(ctx context.Context, actor auth.Actor, jobID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if err := requireStatus(j, StatusDelivered); err != nil {
		return err
	}
	if actor.Role != auth.RoleBuyer || actor.ID != j.BuyerID {
		return ErrRoleNotPermitted
	}

	hired, err := s.repo.GetHiredEntry(ctx, tx, j.ID)
	if err != nil {
		return err
	}

	outstanding, err := s.escrow.Outstanding(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if err := s.escrow.Release(ctx, tx, j.ID, hired.SellerID, outstanding, ledger.ReasonCompletionRelease); err != nil {
		return err
	}

	if err := s.setStatus(ctx, tx, &j, StatusCompleted); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicJobCompleted, map[string]any{
		"job_id":    j.ID,
		"seller_id": hired.SellerID,
		"released":  outstanding,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit completion: %w", err)
	}
	return nil
}

// Cancel aborts a job before the seller has confirmed. Any lock already
// placed is refunded to the buyer.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, jobID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	buyerOwned := actor.Role == auth.RoleBuyer && actor.ID == j.BuyerID
	if !buyerOwned && actor.Role != auth.RoleSupport {
		return ErrRoleNotPermitted
	}
	if j.Status != StatusOpen && j.Status != StatusHired {
		if j.Status == StatusDisputed {
			return ErrJobFrozen
		}
		return ErrInvalidTransition
	}

	outstanding, err := s.escrow.Outstanding(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if outstanding > 0 {
		if err := s.escrow.Refund(ctx, tx, j.ID, j.BuyerID, outstanding, ledger.ReasonCancelRefund); err != nil {
			return err
		}
	}

	if err := s.setStatus(ctx, tx, &j, StatusCancelled); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicJobCancelled, map[string]any{
		"job_id":   j.ID,
		"refunded": outstanding,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job: commit cancel: %w", err)
	}
	return nil
}

// setStatus applies a transition after validating it against the table.
// An illegal edge here means a caller bug, not a user error.
func (s *Service) setStatus(ctx context.Context, tx pgx.Tx, j *Job, next Status) error {
	if !CanTransition(j.Status, next) {
		return fmt.Errorf("job: illegal transition %s -> %s", j.Status, next)
	}
	if err := s.repo.SetStatus(ctx, tx, j.ID, next); err != nil {
		return err
	}
	j.Status = next
	return nil
}

// requireStatus maps "wrong state" to the user-facing error kinds: frozen for
// disputed/terminal jobs, not-hired for pre-trade states.
func requireStatus(j Job, allowed ...Status) error {
	for _, a := range allowed {
		if j.Status == a {
			return nil
		}
	}
	switch j.Status {
	case StatusDisputed, StatusCompleted, StatusCancelled, StatusRefunded:
		return ErrJobFrozen
	case StatusOpen, StatusHired, StatusConfirmed:
		return ErrNotHired
	default:
		return ErrInvalidTransition
	}
}
