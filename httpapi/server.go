package httpapi

import (
	"context"
	"log/slog"

	"retouchflow/auth"
	"retouchflow/dispute"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/traderoom"
)

// JobService is the contract state machine surface the API exposes.
type JobService interface {
	PostJob(ctx context.Context, actor auth.Actor, params job.PostJobParams) (job.Job, error)
	SubmitEntry(ctx context.Context, actor auth.Actor, params job.SubmitEntryParams) (job.Entry, error)
	WithdrawEntry(ctx context.Context, actor auth.Actor, entryID string) error
	HireEntry(ctx context.Context, actor auth.Actor, jobID, entryID string) error
	ConfirmHire(ctx context.Context, actor auth.Actor, jobID string) error
	SubmitDelivery(ctx context.Context, actor auth.Actor, jobID, payloadRef, note string) error
	RequestRevision(ctx context.Context, actor auth.Actor, jobID, note string) error
	ProposePaidRevision(ctx context.Context, actor auth.Actor, jobID string, extraAmount int64, note string) error
	AcceptPaidRevision(ctx context.Context, actor auth.Actor, jobID string) error
	AcceptDelivery(ctx context.Context, actor auth.Actor, jobID string) error
	Cancel(ctx context.Context, actor auth.Actor, jobID string) error
}

// JobReader serves the job read paths.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (job.Job, error)
	ListJobs(ctx context.Context, filters job.ListFilters) ([]job.Job, error)
	ListEntries(ctx context.Context, jobID string) ([]job.Entry, error)
}

// RoomService is the trade-room surface.
type RoomService interface {
	PostMessage(ctx context.Context, actor auth.Actor, params traderoom.PostMessageParams) error
	ListMessages(ctx context.Context, jobID string) ([]traderoom.Message, error)
}

// DisputeService is the escalation surface.
type DisputeService interface {
	Open(ctx context.Context, actor auth.Actor, jobID, reason string) (dispute.Case, error)
	Resolve(ctx context.Context, actor auth.Actor, params dispute.ResolveParams) (dispute.Case, error)
	FlagDelivery(ctx context.Context, jobID, payloadRef string) (dispute.Case, error)
	List(ctx context.Context, jobID string) ([]dispute.Case, error)
}

// WalletService is the coin-ledger surface.
type WalletService interface {
	BalanceOf(ctx context.Context, userID string) (int64, error)
	ListTransactions(ctx context.Context, userID string) ([]ledger.Transaction, error)
	ApplyCredit(ctx context.Context, userID string, amount int64, reason ledger.Reason) error
}

// AuthService issues and verifies identity tokens.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (auth.Actor, error)
}

// Server bundles the services behind the HTTP surface.
type Server struct {
	jobs     JobService
	reader   JobReader
	rooms    RoomService
	disputes DisputeService
	wallet   WalletService
	auth     AuthService
	logger   *slog.Logger
}

func NewServer(jobs JobService, reader JobReader, rooms RoomService, disputes DisputeService, wallet WalletService, authSvc AuthService, logger *slog.Logger) *Server {
	return &Server{
		jobs:     jobs,
		reader:   reader,
		rooms:    rooms,
		disputes: disputes,
		wallet:   wallet,
		auth:     authSvc,
		logger:   logger,
	}
}
