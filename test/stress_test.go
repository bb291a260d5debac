package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"retouchflow/auth"
	"retouchflow/dispute"
	"retouchflow/events"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/test/actors"
	"retouchflow/test/chaos"
	"retouchflow/test/infra"
	"retouchflow/test/oracles"
	"retouchflow/traderoom"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestMarketplaceConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	rand.Seed(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv(infra.EnvPGDSN) != "":
		dsn = os.Getenv(infra.EnvPGDSN)
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seedData := mustSeed(t, ctx, pool)

	outbox := events.NewOutbox()
	escrowRepo := ledger.NewRepository()
	wallet := ledger.NewService(pool, escrowRepo, outbox)
	roomRepo := traderoom.NewRepository()
	jobs := job.NewService(pool, job.NewRepository(), escrowRepo, roomRepo, outbox, job.Config{MaxRevisionRounds: 3})
	rooms := traderoom.NewService(pool, roomRepo, jobs, outbox)
	disputes := dispute.NewService(pool, dispute.NewRepository(), job.NewRepository(), escrowRepo, outbox)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := events.NewRelay(pool, actors.NullPublisher{}, logger, 200*time.Millisecond, 8)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	buyer := auth.Actor{ID: seedData.buyerID, Role: auth.RoleBuyer}
	seller := auth.Actor{ID: seedData.sellerID, Role: auth.RoleSeller}
	support := auth.Actor{ID: seedData.supportID, Role: auth.RoleSupport}

	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error {
			return actors.RivalHirer(ctx2, jobs, buyer, seedData.jobID, seedData.entryIDs, stop)
		})
	}
	g.Go(func() error { return actors.Negotiator(ctx2, jobs, buyer, seller, seedData.jobID, stop) })
	g.Go(func() error { return actors.Chatter(ctx2, rooms, buyer, seedData.jobID, stop) })
	g.Go(func() error { return actors.Chatter(ctx2, rooms, seller, seedData.jobID, stop) })
	g.Go(func() error { return actors.Disputer(ctx2, disputes, support, seedData.jobID, stop) })
	g.Go(func() error { return actors.TopUpper(ctx2, wallet, seedData.buyerID, stop) })
	g.Go(func() error {
		err := relay.Run(ctx2)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	buyerID   string
	sellerID  string
	supportID string
	jobID     string
	entryIDs  []string
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seedIDs {
	t.Helper()
	var s seedIDs

	newUser := func(role string) string {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO users (email, full_name, password_hash, role)
			VALUES ($1, $2, 'x', $3::user_role) RETURNING id::text
		`, fmt.Sprintf("%s-%d@example.com", role, rand.Int63()), "Stress "+role, role).Scan(&id)
		if err != nil {
			t.Fatalf("seed %s: %v", role, err)
		}
		return id
	}
	s.buyerID = newUser("buyer")
	s.sellerID = newUser("seller")
	s.supportID = newUser("support")

	// a fat starting balance so early hires don't all bounce
	if _, err := pool.Exec(ctx, `
		INSERT INTO escrow_transactions (user_id, direction, amount, reason)
		VALUES ($1, 'credit', 100000, 'purchase_topup')
	`, s.buyerID); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	if err := pool.QueryRow(ctx, `
		INSERT INTO jobs (buyer_id, title, brief, price)
		VALUES ($1, 'stress retouch', 'fix everything', 500) RETURNING id::text
	`, s.buyerID).Scan(&s.jobID); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	// competing entries from distinct sellers; the named seller owns the first
	sellers := []string{s.sellerID, newUser("seller"), newUser("seller")}
	for i, sellerID := range sellers {
		var entryID string
		if err := pool.QueryRow(ctx, `
			INSERT INTO entries (job_id, seller_id, price, note)
			VALUES ($1, $2, $3, 'stress bid') RETURNING id::text
		`, s.jobID, sellerID, 400+i*50).Scan(&entryID); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
		s.entryIDs = append(s.entryIDs, entryID)
	}
	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"jobs", `SELECT id, status, revision_rounds, pending_extra FROM jobs ORDER BY updated_at DESC LIMIT 20`},
		{"escrow_transactions", `SELECT id, job_id, user_id, direction, amount, reason FROM escrow_transactions ORDER BY id DESC LIMIT 50`},
		{"trade_messages", `SELECT id, job_id, seq, kind, created_at FROM trade_messages ORDER BY id DESC LIMIT 50`},
		{"disputes", `SELECT id, job_id, status, resolution, release_amount, refund_amount FROM disputes ORDER BY created_at DESC LIMIT 20`},
		{"outbox", `SELECT id, topic, status, attempts, created_at FROM outbox ORDER BY id DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
