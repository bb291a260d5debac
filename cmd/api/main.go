package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"retouchflow/auth"
	"retouchflow/config"
	"retouchflow/db"
	"retouchflow/dispute"
	"retouchflow/events"
	"retouchflow/httpapi"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/logging"
	"retouchflow/traderoom"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, db.Options{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	publisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	outbox := events.NewOutbox()

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	escrowRepo := ledger.NewRepository()
	wallet := ledger.NewService(pool, escrowRepo, outbox)

	roomRepo := traderoom.NewRepository()
	jobSvc := job.NewService(pool, job.NewRepository(), escrowRepo, roomRepo, outbox, job.Config{
		MaxRevisionRounds: cfg.Marketplace.MaxRevisionRounds,
	})
	jobReader := job.NewReader(pool)

	rooms := traderoom.NewService(pool, roomRepo, jobSvc, outbox)

	disputes := dispute.NewService(pool, dispute.NewRepository(), job.NewRepository(), escrowRepo, outbox)

	server := httpapi.NewServer(jobSvc, jobReader, rooms, disputes, wallet, authSvc, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	relay := events.NewRelay(pool, publisher, logger, cfg.RabbitMQ.PollInterval, cfg.RabbitMQ.MaxAttempts)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox relay: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
