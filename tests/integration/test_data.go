package integration

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// TestCredentials generates unique test user credentials using a timestamp
func TestCredentials(suffix string) (username, email, password string) {
	ts := time.Now().UnixNano()
	username = fmt.Sprintf("player_%d_%s", ts%1_000_000_000, suffix)
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassw0rd123!"
	return
}

// setupDB starts a fresh PostgreSQL container for the test and tears it down
// when the test finishes. Skipped in -short mode.
func setupDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("failed to set up test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Teardown(context.Background()); err != nil {
			t.Logf("teardown error: %v", err)
		}
	})
	return db
}
