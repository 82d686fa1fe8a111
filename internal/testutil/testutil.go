// Package testutil starts throwaway Postgres and Redis containers for
// integration tests. Tests using it are skipped under -short or when no
// Docker daemon is reachable.
package testutil

import (
	"context"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pgstore "github.com/sakif/articles-api/internal/repository/postgres"
)

// RequireDocker skips t unless containers can be started.
func RequireDocker(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}

	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("docker not available: %s", out)
	}
}

type PostgresContainer struct {
	Pool *pgxpool.Pool
	DSN  string
}

// StartPostgresContainer runs postgres, applies migrations and returns a
// connected pool. The container is removed when the test ends.
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	RequireDocker(t)

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("articles-test"),
		postgres.WithUsername("articles"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "starting postgres container")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "getting postgres connection string")
	t.Logf("Container with pg started, DSN=%v", dsn)

	require.NoError(t, pgstore.Migrate(dsn), "migrating schema")

	// t.Context is cancelled before cleanups run, so the pool gets its own.
	pool, err := pgstore.Connect(context.Background(), dsn)
	require.NoError(t, err, "connecting to postgres")
	t.Cleanup(pool.Close)

	return PostgresContainer{Pool: pool, DSN: dsn}
}

type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// WithTx runs testFunc inside a transaction that is rolled back afterwards,
// leaving the database unchanged for the next subtest.
func WithTx(t *testing.T, db beginner, testFunc func(tx pgx.Tx)) {
	t.Helper()

	tx, err := db.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		require.NoError(t, tx.Rollback(context.Background()))
	}()

	testFunc(tx)
}

// StartRedisContainer runs redis and returns its host:port address.
func StartRedisContainer(t *testing.T) string {
	t.Helper()
	RequireDocker(t)

	container, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "starting redis container")

	addr, err := container.Endpoint(t.Context(), "")
	require.NoError(t, err, "getting redis endpoint")
	return addr
}
