package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestSQLStore(t *testing.T) {
	store := NewSQLStore(newTestDB(t))
	defer store.Close()
	storeUnderTest(t, store)
}

func TestSQLStoreUpsert(t *testing.T) {
	store := NewSQLStore(newTestDB(t))
	defer store.Close()
	ctx := context.Background()

	sess := &Session{ID: "fixed", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sess.UserID = "user-2"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Load(ctx, "fixed")
	if err != nil || got == nil {
		t.Fatalf("Load = %v, %v", got, err)
	}
	if got.UserID != "user-2" {
		t.Errorf("UserID = %q, want user-2 after upsert", got.UserID)
	}
}
