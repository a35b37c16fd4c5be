package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/vovakirdan/babble-server/internal/store"
	"github.com/vovakirdan/babble-server/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestSchemaIsIdempotent(t *testing.T) {
	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		if _, err := db.Exec(Schema); err != nil {
			return err
		}
		_, err := db.Exec(Schema)
		return err
	})
	if err != nil {
		t.Fatalf("apply schema twice: %v", err)
	}
	defer s.Close()

	if _, err := s.SaveUser(context.Background(), 1, "alice"); err != nil {
		t.Fatalf("save user: %v", err)
	}
}
