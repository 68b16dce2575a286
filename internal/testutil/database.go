// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/storage"
)

// SetupTestStore creates a migrated in-memory harvest store and registers its
// cleanup.
func SetupTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
