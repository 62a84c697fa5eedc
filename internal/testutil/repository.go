package testutil

import (
	"context"
	"testing"

	"github.com/romanzh1/mnemosyne/internal/repository"
)

// NewTestRepository returns a migrated in-memory SQLite repository that is
// closed when the test finishes.
func NewTestRepository(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Up(context.Background()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
