package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres"
	"github.com/heartmarshall/safety-pulse/internal/adapter/postgres/testhelper"
)

func TestWriterLock_SingleHolder(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	first, err := postgres.AcquireWriterLock(ctx, pool)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := postgres.AcquireWriterLock(ctx, pool); !errors.Is(err, postgres.ErrWriterLocked) {
		t.Fatalf("second acquire: got %v, want ErrWriterLocked", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}

	again, err := postgres.AcquireWriterLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := again.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
}
