// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"rankwise/internal/db"
)

// TestDB creates a test database connection and returns a cleanup function.
// Uses TEST_DATABASE_URL and skips the test when it is not set.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanupTestData(ctx, database.Pool)
	cleanup := func() {
		cleanupTestData(ctx, database.Pool)
		database.Close()
	}

	return database, cleanup
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, pool db.Pool) {
	// Delete in order to respect foreign keys
	pool.Exec(ctx, "DELETE FROM quota_ledger")
	pool.Exec(ctx, "DELETE FROM subscriptions")
	pool.Exec(ctx, "DELETE FROM users")
}

// CreateTestUser creates a test user and returns the user ID. metadata is
// stored as the user's JSONB metadata column; pass "" for an empty object.
func CreateTestUser(t *testing.T, database *db.DB, sub, email, role, metadata string) uuid.UUID {
	t.Helper()
	if metadata == "" {
		metadata = "{}"
	}

	var id uuid.UUID
	err := database.Pool.QueryRow(context.Background(), `
		INSERT INTO users (sub, email, role, metadata)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (sub) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, sub, email, role, metadata).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return id
}

// CreateTestSubscription creates a subscription row. A nil periodEnd means
// the subscription does not expire.
func CreateTestSubscription(t *testing.T, database *db.DB, userID uuid.UUID, status, plan string, periodEnd *time.Time) {
	t.Helper()

	_, err := database.Pool.Exec(context.Background(), `
		INSERT INTO subscriptions (user_id, status, plan, current_period_end)
		VALUES ($1, $2, $3, $4)
	`, userID, status, plan, periodEnd)
	if err != nil {
		t.Fatalf("failed to create test subscription: %v", err)
	}
}
