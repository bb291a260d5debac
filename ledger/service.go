package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retouchflow/events"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Outbox records events inside the caller's transaction.
type Outbox interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// Service exposes the ledger operations that own their own transaction:
// top-up credits and read-only projections. Escrow movements tied to job
// transitions go through Repository inside the job's transaction instead.
type Service struct {
	pool   *pgxpool.Pool
	repo   *Repository
	outbox Outbox
}

func NewService(pool *pgxpool.Pool, repo *Repository, outbox Outbox) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{pool: pool, repo: repo, outbox: outbox}
}

// BalanceOf returns the user's available coin balance.
func (s *Service) BalanceOf(ctx context.Context, userID string) (int64, error) {
	return s.repo.Balance(ctx, s.pool, userID)
}

// ListTransactions returns the user's ledger statement in append order.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	return s.repo.ListByUser(ctx, s.pool, userID)
}

// ApplyCredit records a coin credit for the user, e.g. from the external
// coin-purchase collaborator.
func (s *Service) ApplyCredit(ctx context.Context, userID string, amount int64, reason Reason) error {
	if reason == "" {
		reason = ReasonPurchaseTopup
	}
	switch reason {
	case ReasonPurchaseTopup, ReasonAdminAdjustment:
	default:
		return ErrInvalidReason
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Credit(ctx, tx, userID, amount, reason); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, events.TopicCreditApplied, map[string]any{
		"user_id": userID,
		"amount":  amount,
		"reason":  reason,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit credit tx: %w", err)
	}
	return nil
}
