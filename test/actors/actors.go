package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"retouchflow/auth"
	"retouchflow/dispute"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/traderoom"
)

// tolerate swallows the contention outcomes the domain is expected to produce
// under concurrency, plus connection casualties inflicted by the chaos
// goroutine. Anything else is a real failure.
func tolerate(err error, expected ...error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			return nil
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57P01" { // terminated by chaos
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "conn closed") || strings.Contains(msg, "unexpected EOF") {
		return nil
	}
	return err
}

var hireOutcomes = []error{
	job.ErrAlreadyHired,
	job.ErrJobNotOpen,
	job.ErrEntryUnavailable,
	job.ErrEntryNotFound,
	job.ErrJobFrozen,
	ledger.ErrInsufficientFunds,
}

// RivalHirer hammers HireEntry for the same job with competing entries. At
// most one hire may ever take; everyone else must see a clean rejection with
// no coins moved.
func RivalHirer(ctx context.Context, jobs *job.Service, buyer auth.Actor, jobID string, entryIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		entryID := entryIDs[rand.Intn(len(entryIDs))]
		if err := tolerate(jobs.HireEntry(ctx, buyer, jobID, entryID), hireOutcomes...); err != nil {
			return fmt.Errorf("rival hirer: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

var tradeOutcomes = []error{
	job.ErrNotHired,
	job.ErrJobFrozen,
	job.ErrInvalidTransition,
	job.ErrRevisionLimitExceeded,
	job.ErrNoPendingProposal,
	job.ErrRoleNotPermitted,
}

// Negotiator plays both sides of a trade room: the seller keeps delivering,
// the buyer keeps bouncing deliveries back, occasionally via a paid revision.
func Negotiator(ctx context.Context, jobs *job.Service, buyer, seller auth.Actor, jobID string, stop <-chan struct{}) error {
	round := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		round++

		err := jobs.ConfirmHire(ctx, seller, jobID)
		if err := tolerate(err, tradeOutcomes...); err != nil {
			return fmt.Errorf("negotiator confirm: %w", err)
		}

		ref := fmt.Sprintf("asset://draft-%d", round)
		if err := tolerate(jobs.SubmitDelivery(ctx, seller, jobID, ref, "round"), tradeOutcomes...); err != nil {
			return fmt.Errorf("negotiator deliver: %w", err)
		}

		switch rand.Intn(4) {
		case 0:
			if err := tolerate(jobs.RequestRevision(ctx, buyer, jobID, "tweak it"), tradeOutcomes...); err != nil {
				return fmt.Errorf("negotiator revise: %w", err)
			}
		case 1:
			if err := tolerate(jobs.ProposePaidRevision(ctx, seller, jobID, int64(50+rand.Intn(50)), "extra work"), tradeOutcomes...); err != nil {
				return fmt.Errorf("negotiator propose: %w", err)
			}
			if err := tolerate(jobs.AcceptPaidRevision(ctx, buyer, jobID), append(tradeOutcomes, ledger.ErrInsufficientFunds)...); err != nil {
				return fmt.Errorf("negotiator accept fee: %w", err)
			}
		case 2:
			if err := tolerate(jobs.AcceptDelivery(ctx, buyer, jobID), append(tradeOutcomes, ledger.ErrNoSuchLock)...); err != nil {
				return fmt.Errorf("negotiator accept: %w", err)
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

var chatOutcomes = []error{
	traderoom.ErrJobFrozen,
	traderoom.ErrJobNotFound,
	traderoom.ErrRoleNotPermitted,
}

// Chatter posts plain chat into the trade room; outside an active trade the
// room must reject it without touching the log.
func Chatter(ctx context.Context, rooms *traderoom.Service, actor auth.Actor, jobID string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		err := rooms.PostMessage(ctx, actor, traderoom.PostMessageParams{
			JobID: jobID,
			Kind:  traderoom.KindChat,
			Body:  fmt.Sprintf("msg %d", i),
		})
		if err := tolerate(err, chatOutcomes...); err != nil {
			return fmt.Errorf("chatter: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

var disputeOutcomes = []error{
	dispute.ErrNotDisputable,
	dispute.ErrDisputeAlreadyOpen,
	dispute.ErrNoOpenDispute,
	job.ErrJobNotFound,
	job.ErrNotHired,
}

// Disputer occasionally freezes the job and has support resolve it with a
// random split, racing the negotiation traffic.
func Disputer(ctx context.Context, disputes *dispute.Service, support auth.Actor, jobID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if rand.Intn(6) == 0 {
			_, err := disputes.Open(ctx, support, jobID, "stress escalation")
			if err := tolerate(err, disputeOutcomes...); err != nil {
				return fmt.Errorf("disputer open: %w", err)
			}
			_, err = disputes.Resolve(ctx, support, dispute.ResolveParams{
				JobID:          jobID,
				Action:         dispute.ActionSplit,
				SellerShareBps: rand.Intn(10001),
			})
			if err := tolerate(err, disputeOutcomes...); err != nil {
				return fmt.Errorf("disputer resolve: %w", err)
			}
		}
		time.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond)
	}
}

// TopUpper keeps the buyer funded so hires and revision fees keep flowing.
func TopUpper(ctx context.Context, wallet *ledger.Service, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := tolerate(wallet.ApplyCredit(ctx, userID, int64(100+rand.Intn(400)), ledger.ReasonPurchaseTopup)); err != nil {
			return fmt.Errorf("topupper: %w", err)
		}
		time.Sleep(time.Duration(150+rand.Intn(150)) * time.Millisecond)
	}
}

// NullPublisher discards deliveries, so the outbox relay can run without a
// broker.
type NullPublisher struct{}

func (NullPublisher) Publish(ctx context.Context, topic string, body []byte) error { return nil }

func (NullPublisher) Close() error { return nil }
