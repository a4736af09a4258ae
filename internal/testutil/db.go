// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/persistence"
)

// NewTestPool connects to TEST_DATABASE_URL, applies migrations and empties
// every table. The test is skipped when the variable is unset. Packages share
// the database, so run them with -p 1.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := persistence.RunMigrations(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	TruncateAll(t, pool)
	return pool
}

// TruncateAll removes all rows from the application tables.
func TruncateAll(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	const query = `TRUNCATE scheduled_tasks, waiting_list_history, waiting_list_entries, tickets, events`
	if _, err := pool.Exec(context.Background(), query); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
