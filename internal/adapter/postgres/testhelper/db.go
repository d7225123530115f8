// Package testhelper provides a migrated PostgreSQL database for repository
// tests. TEST_DATABASE_DSN points the tests at an existing server;
// otherwise one container is started per test binary.
package testhelper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	"github.com/heartmarshall/safety-pulse/internal/config"
)

// DSNEnv names the variable that overrides the container.
const DSNEnv = "TEST_DATABASE_DSN"

const (
	image        = "postgres:17-alpine"
	dbUser       = "pulse"
	dbPassword   = "pulse"
	dbName       = "pulse_test"
	startTimeout = 2 * time.Minute
)

var (
	setupOnce sync.Once
	dsn       string
	setupErr  error
)

// SetupTestDB returns a pool on the shared, migrated test database. It skips
// the test under -short. The pool goes through postgres.NewPool, so tests
// exercise the same tracer and connection settings as the server.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests need a database; skipped with -short")
	}

	setupOnce.Do(func() { dsn, setupErr = provision() })
	if setupErr != nil {
		t.Fatalf("testhelper: %v", setupErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, config.DatabaseConfig{
		DSN:             dsn,
		MaxConns:        4,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("testhelper: open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func provision() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	target := os.Getenv(DSNEnv)
	if target == "" {
		var err error
		if target, err = startContainer(ctx); err != nil {
			return "", err
		}
	}

	if _, err := postgres.MigrateDSN(ctx, target); err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	return target, nil
}

// startContainer leaves the container running; testcontainers' reaper
// removes it when the test binary exits.
func startContainer(ctx context.Context) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     dbUser,
				"POSTGRES_PASSWORD": dbPassword,
				"POSTGRES_DB":       dbName,
			},
			// The entrypoint restarts the server once after init scripts.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start %s: %w", image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return "", fmt.Errorf("container port: %w", err)
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		dbUser, dbPassword, net.JoinHostPort(host, port.Port()), dbName), nil
}
