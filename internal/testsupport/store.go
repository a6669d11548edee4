package testsupport

import (
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/draftstore"
)

// MustOpenDraftStore opens a draftstore.Store for tests and registers cleanup.
func MustOpenDraftStore(t testing.TB, cfg *config.Config) *draftstore.Store {
	t.Helper()

	store, err := draftstore.Open(cfg)
	if err != nil {
		t.Fatalf("draftstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
