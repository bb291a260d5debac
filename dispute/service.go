package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retouchflow/auth"
	"retouchflow/events"
	"retouchflow/job"
	"retouchflow/ledger"
)

var (
	// ErrRoleNotPermitted signals the actor may not open or resolve the case.
	ErrRoleNotPermitted = errors.New("dispute: role not permitted")
	// ErrNotDisputable signals the job is not in a state disputes can be
	// opened from.
	ErrNotDisputable = errors.New("dispute: job not in a disputable state")
	// ErrInvalidAction signals an unknown resolution action or split ratio.
	ErrInvalidAction = errors.New("dispute: invalid resolution action")
)

// EscrowLedger is the slice of the coin ledger dispute resolution drives.
type EscrowLedger interface {
	Release(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, reason ledger.Reason) error
	Refund(ctx context.Context, tx pgx.Tx, jobID, toUserID string, amount int64, reason ledger.Reason) error
	Outstanding(ctx context.Context, q ledger.Querier, jobID string) (int64, error)
}

// Outbox records events inside the caller's transaction.
type Outbox interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// Service freezes jobs into dispute and applies privileged resolutions.
type Service struct {
	pool   *pgxpool.Pool
	repo   *Repository
	jobs   job.Repository
	escrow EscrowLedger
	outbox Outbox
}

func NewService(pool *pgxpool.Pool, repo *Repository, jobs job.Repository, escrow EscrowLedger, outbox Outbox) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{pool: pool, repo: repo, jobs: jobs, escrow: escrow, outbox: outbox}
}

// Open freezes the job. Buyer, hired seller, or support may open; every
// normal transition is rejected until support resolves.
func (s *Service) Open(ctx context.Context, actor auth.Actor, jobID, reason string) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.jobs.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return Case{}, err
	}
	if j.Status == job.StatusDisputed {
		return Case{}, ErrDisputeAlreadyOpen
	}
	if !job.InActiveTrade(j.Status) {
		return Case{}, ErrNotDisputable
	}

	switch actor.Role {
	case auth.RoleSupport:
	case auth.RoleBuyer:
		if actor.ID != j.BuyerID {
			return Case{}, ErrRoleNotPermitted
		}
	case auth.RoleSeller:
		hired, err := s.jobs.GetHiredEntry(ctx, tx, j.ID)
		if err != nil {
			return Case{}, err
		}
		if actor.ID != hired.SellerID {
			return Case{}, ErrRoleNotPermitted
		}
	default:
		return Case{}, ErrRoleNotPermitted
	}

	openedBy := actor.ID
	c, err := s.open(ctx, tx, j, reason, &openedBy)
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("dispute: commit open: %w", err)
	}
	return c, nil
}

// FlagDelivery is the moderation/provenance collaborator's entry point: a
// flagged delivery payload forces the job into dispute with the moderation
// reason. Flagging an already-disputed job is a no-op.
func (s *Service) FlagDelivery(ctx context.Context, jobID, payloadRef string) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.jobs.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return Case{}, err
	}
	if j.Status == job.StatusDisputed {
		return s.repo.GetOpenForUpdate(ctx, tx, jobID)
	}
	if !job.InActiveTrade(j.Status) {
		return Case{}, ErrNotDisputable
	}

	reason := ReasonModerationFlag
	if payloadRef != "" {
		reason = fmt.Sprintf("%s:%s", ReasonModerationFlag, payloadRef)
	}
	c, err := s.open(ctx, tx, j, reason, nil)
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("dispute: commit flag: %w", err)
	}
	return c, nil
}

func (s *Service) open(ctx context.Context, tx pgx.Tx, j job.Job, reason string, openedBy *string) (Case, error) {
	if !job.CanTransition(j.Status, job.StatusDisputed) {
		return Case{}, ErrNotDisputable
	}

	c, err := s.repo.Insert(ctx, tx, j.ID, reason, openedBy)
	if err != nil {
		return Case{}, err
	}
	if err := s.jobs.SetStatus(ctx, tx, j.ID, job.StatusDisputed); err != nil {
		return Case{}, err
	}

	payload := map[string]any{
		"job_id":     j.ID,
		"dispute_id": c.ID,
		"reason":     reason,
	}
	if openedBy != nil {
		payload["opened_by"] = *openedBy
	}
	if err := s.outbox.Enqueue(ctx, tx, events.TopicDisputeOpened, payload); err != nil {
		return Case{}, err
	}
	return c, nil
}

// Resolve applies a support decision and terminates the job. The release and
// refund always sum to exactly the outstanding lock; split rounding floors
// the seller share so ties favor the buyer.
func (s *Service) Resolve(ctx context.Context, actor auth.Actor, params ResolveParams) (Case, error) {
	if actor.Role != auth.RoleSupport {
		return Case{}, ErrRoleNotPermitted
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.jobs.GetJobForUpdate(ctx, tx, params.JobID)
	if err != nil {
		return Case{}, err
	}
	if j.Status != job.StatusDisputed {
		return Case{}, ErrNoOpenDispute
	}

	c, err := s.repo.GetOpenForUpdate(ctx, tx, params.JobID)
	if err != nil {
		return Case{}, err
	}

	hired, err := s.jobs.GetHiredEntry(ctx, tx, j.ID)
	if err != nil {
		return Case{}, err
	}

	outstanding, err := s.escrow.Outstanding(ctx, tx, j.ID)
	if err != nil {
		return Case{}, err
	}

	var release, refund int64
	switch params.Action {
	case ActionRefundBuyer:
		refund = outstanding
	case ActionReleaseToSeller:
		release = outstanding
	case ActionSplit:
		release, refund, err = SplitAmounts(outstanding, params.SellerShareBps)
		if err != nil {
			return Case{}, err
		}
	default:
		return Case{}, ErrInvalidAction
	}

	if release > 0 {
		if err := s.escrow.Release(ctx, tx, j.ID, hired.SellerID, release, ledger.ReasonDisputeRelease); err != nil {
			return Case{}, err
		}
	}
	if refund > 0 {
		if err := s.escrow.Refund(ctx, tx, j.ID, j.BuyerID, refund, ledger.ReasonDisputeRefund); err != nil {
			return Case{}, err
		}
	}

	// Full refund reads as a refunded job; any payout to the seller reads as
	// completed.
	final := job.StatusCompleted
	topic := events.TopicJobCompleted
	if release == 0 {
		final = job.StatusRefunded
		topic = events.TopicJobRefunded
	}
	if !job.CanTransition(j.Status, final) {
		return Case{}, fmt.Errorf("dispute: illegal transition %s -> %s", j.Status, final)
	}
	if err := s.jobs.SetStatus(ctx, tx, j.ID, final); err != nil {
		return Case{}, err
	}

	if err := s.repo.MarkResolved(ctx, tx, c.ID, params.Action, release, refund, actor.ID); err != nil {
		return Case{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicDisputeResolved, map[string]any{
		"job_id":     j.ID,
		"dispute_id": c.ID,
		"action":     params.Action,
		"release":    release,
		"refund":     refund,
	}); err != nil {
		return Case{}, err
	}
	if err := s.outbox.Enqueue(ctx, tx, topic, map[string]any{
		"job_id":   j.ID,
		"via":      "dispute_resolution",
		"release":  release,
		"refunded": refund,
	}); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("dispute: commit resolve: %w", err)
	}

	c.Status = StatusResolved
	action := params.Action
	c.Resolution = &action
	c.ReleaseAmount = &release
	c.RefundAmount = &refund
	c.ResolvedBy = &actor.ID
	return c, nil
}

// List returns the job's cases.
func (s *Service) List(ctx context.Context, jobID string) ([]Case, error) {
	return s.repo.ListByJob(ctx, s.pool, jobID)
}

// SplitAmounts divides an outstanding lock between seller and buyer. The
// seller share is floored to whole coins; the remainder refunds to the
// buyer, so a 50% split of an odd amount gives the buyer the extra coin.
func SplitAmounts(outstanding int64, sellerShareBps int) (release, refund int64, err error) {
	if sellerShareBps < 0 || sellerShareBps > 10000 {
		return 0, 0, ErrInvalidAction
	}
	release = outstanding * int64(sellerShareBps) / 10000
	refund = outstanding - release
	return release, refund, nil
}
