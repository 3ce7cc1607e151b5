// Package testutil provides shared test helpers for the opspulse project.
package testutil

import (
	"context"
	"testing"

	"github.com/kirenlabs/opspulse/internal/service"
	"github.com/kirenlabs/opspulse/internal/storage"
)

// SetupTestDB creates a migrated in-memory store with automatic cleanup.
func SetupTestDB(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
