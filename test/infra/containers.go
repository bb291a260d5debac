package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// EnvPGDSN names an existing Postgres to reuse instead of booting a
// container. The test harness checks it before reaching for Docker.
const EnvPGDSN = "RETOUCHFLOW_TEST_PG_DSN"

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 provides a Postgres 16 for the marketplace suite. A
// reuseDSN argument or EnvPGDSN short-circuits the container entirely.
func StartPostgres16(ctx context.Context, reuseDSN string) (*PGContainer, string, error) {
	if reuseDSN != "" {
		return &PGContainer{}, reuseDSN, nil
	}
	if dsn := os.Getenv(EnvPGDSN); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("retouchflow"),
		postgres.WithUsername("retouch"),
		postgres.WithPassword("retouch"),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
