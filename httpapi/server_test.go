package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouchflow/auth"
	"retouchflow/dispute"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/traderoom"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubJobs struct {
	postJobFn   func(ctx context.Context, actor auth.Actor, params job.PostJobParams) (job.Job, error)
	hireEntryFn func(ctx context.Context, actor auth.Actor, jobID, entryID string) error
}

func (s *stubJobs) PostJob(ctx context.Context, actor auth.Actor, params job.PostJobParams) (job.Job, error) {
	if s.postJobFn != nil {
		return s.postJobFn(ctx, actor, params)
	}
	return job.Job{}, errors.New("not stubbed")
}

func (s *stubJobs) SubmitEntry(ctx context.Context, actor auth.Actor, params job.SubmitEntryParams) (job.Entry, error) {
	return job.Entry{}, errors.New("not stubbed")
}

func (s *stubJobs) WithdrawEntry(ctx context.Context, actor auth.Actor, entryID string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) HireEntry(ctx context.Context, actor auth.Actor, jobID, entryID string) error {
	if s.hireEntryFn != nil {
		return s.hireEntryFn(ctx, actor, jobID, entryID)
	}
	return errors.New("not stubbed")
}

func (s *stubJobs) ConfirmHire(ctx context.Context, actor auth.Actor, jobID string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) SubmitDelivery(ctx context.Context, actor auth.Actor, jobID, payloadRef, note string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) RequestRevision(ctx context.Context, actor auth.Actor, jobID, note string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) ProposePaidRevision(ctx context.Context, actor auth.Actor, jobID string, extraAmount int64, note string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) AcceptPaidRevision(ctx context.Context, actor auth.Actor, jobID string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) AcceptDelivery(ctx context.Context, actor auth.Actor, jobID string) error {
	return errors.New("not stubbed")
}

func (s *stubJobs) Cancel(ctx context.Context, actor auth.Actor, jobID string) error {
	return errors.New("not stubbed")
}

type stubReader struct {
	getJobFn func(ctx context.Context, jobID string) (job.Job, error)
}

func (s *stubReader) GetJob(ctx context.Context, jobID string) (job.Job, error) {
	if s.getJobFn != nil {
		return s.getJobFn(ctx, jobID)
	}
	return job.Job{}, job.ErrJobNotFound
}

func (s *stubReader) ListJobs(ctx context.Context, filters job.ListFilters) ([]job.Job, error) {
	return nil, nil
}

func (s *stubReader) ListEntries(ctx context.Context, jobID string) ([]job.Entry, error) {
	return nil, nil
}

type stubRooms struct{}

func (s *stubRooms) PostMessage(ctx context.Context, actor auth.Actor, params traderoom.PostMessageParams) error {
	if !params.Kind.Valid() {
		return traderoom.ErrUnknownKind
	}
	return nil
}

func (s *stubRooms) ListMessages(ctx context.Context, jobID string) ([]traderoom.Message, error) {
	return nil, nil
}

type stubDisputes struct {
	flagFn func(ctx context.Context, jobID, payloadRef string) (dispute.Case, error)
}

func (s *stubDisputes) Open(ctx context.Context, actor auth.Actor, jobID, reason string) (dispute.Case, error) {
	return dispute.Case{}, errors.New("not stubbed")
}

func (s *stubDisputes) Resolve(ctx context.Context, actor auth.Actor, params dispute.ResolveParams) (dispute.Case, error) {
	return dispute.Case{}, errors.New("not stubbed")
}

func (s *stubDisputes) FlagDelivery(ctx context.Context, jobID, payloadRef string) (dispute.Case, error) {
	if s.flagFn != nil {
		return s.flagFn(ctx, jobID, payloadRef)
	}
	return dispute.Case{}, errors.New("not stubbed")
}

func (s *stubDisputes) List(ctx context.Context, jobID string) ([]dispute.Case, error) {
	return nil, nil
}

type stubWallet struct {
	balance int64
}

func (s *stubWallet) BalanceOf(ctx context.Context, userID string) (int64, error) {
	return s.balance, nil
}

func (s *stubWallet) ListTransactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	return nil, nil
}

func (s *stubWallet) ApplyCredit(ctx context.Context, userID string, amount int64, reason ledger.Reason) error {
	return nil
}

type stubAuth struct {
	actors map[string]auth.Actor
}

func (s *stubAuth) Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error) {
	return &auth.User{ID: "user-1", Email: req.Email, FullName: req.FullName, Role: auth.RoleBuyer}, nil
}

func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	return auth.LoginResult{Token: "stub-token", User: auth.User{ID: "user-1", Email: req.Email}}, nil
}

func (s *stubAuth) VerifyToken(token string) (auth.Actor, error) {
	actor, ok := s.actors[token]
	if !ok {
		return auth.Actor{}, errors.New("unknown token")
	}
	return actor, nil
}

func newTestServer(t *testing.T, jobs *stubJobs, disputes *stubDisputes) (*Server, *stubAuth) {
	t.Helper()
	if jobs == nil {
		jobs = &stubJobs{}
	}
	if disputes == nil {
		disputes = &stubDisputes{}
	}
	authStub := &stubAuth{actors: map[string]auth.Actor{
		"buyer-token":   {ID: "buyer-1", Role: auth.RoleBuyer},
		"seller-token":  {ID: "seller-1", Role: auth.RoleSeller},
		"support-token": {ID: "support-1", Role: auth.RoleSupport},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(jobs, &stubReader{}, &stubRooms{}, disputes, &stubWallet{balance: 1200}, authStub, logger), authStub
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_RejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/wallet/balance", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":     "buyer@example.com",
		"password":  "password123",
		"full_name": "Test Buyer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "buyer@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stub-token", resp.Token)
}

func TestPostJob_AsBuyer(t *testing.T) {
	jobs := &stubJobs{
		postJobFn: func(ctx context.Context, actor auth.Actor, params job.PostJobParams) (job.Job, error) {
			assert.Equal(t, "buyer-1", actor.ID)
			return job.Job{ID: "job-1", BuyerID: actor.ID, Title: params.Title, Price: params.Price, Status: job.StatusOpen}, nil
		},
	}
	srv, _ := newTestServer(t, jobs, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/jobs", "buyer-token", map[string]any{
		"title": "remove background",
		"brief": "white product shots",
		"price": 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Job jobDTO `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.Job.ID)
	assert.Equal(t, "open", resp.Job.Status)
}

func TestHireEntry_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"already hired", job.ErrAlreadyHired, http.StatusConflict},
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"not found", job.ErrJobNotFound, http.StatusNotFound},
		{"not permitted", job.ErrRoleNotPermitted, http.StatusForbidden},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &stubJobs{
				hireEntryFn: func(ctx context.Context, actor auth.Actor, jobID, entryID string) error {
					return tc.err
				},
			}
			srv, _ := newTestServer(t, jobs, nil)

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/jobs/job-1/hire", "buyer-token", map[string]any{
				"entry_id": "entry-1",
			})
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestPostMessage_KindMapping(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/jobs/job-1/messages", "buyer-token", map[string]any{
		"kind": "sticker", "body": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/jobs/job-1/messages", "buyer-token", map[string]any{
		"kind": "chat", "body": "hi",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestWalletBalance(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/wallet/balance", "buyer-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1200), resp.Balance)
}

func TestSupportOnlyRoutes(t *testing.T) {
	disputes := &stubDisputes{
		flagFn: func(ctx context.Context, jobID, payloadRef string) (dispute.Case, error) {
			return dispute.Case{ID: "case-1", JobID: jobID, Status: dispute.StatusOpen}, nil
		},
	}
	srv, _ := newTestServer(t, nil, disputes)

	body := map[string]any{"job_id": "job-1", "payload_ref": "asset://flagged"}

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/moderation/flags", "buyer-token", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/moderation/flags", "support-token", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/jobs/job-1/disputes/resolve", "seller-token", map[string]any{
		"action": "split", "seller_share_bps": 5000,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
