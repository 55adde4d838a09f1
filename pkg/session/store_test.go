package session

import (
	"context"
	"testing"
	"time"
)

// storeUnderTest exercises the full Store contract against any backend.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	sess := &Session{
		ID:        NewID(),
		UserID:    "user-1",
		Email:     "admin@example.com",
		Name:      "Admin",
		Role:      "admin",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	t.Run("SaveAndLoad", func(t *testing.T) {
		if err := store.Save(ctx, sess); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := store.Load(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got == nil {
			t.Fatal("Load returned nil for live session")
		}
		if got.UserID != "user-1" || got.Role != "admin" {
			t.Errorf("Load = %+v", got)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		got, err := store.Load(ctx, "does-not-exist")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got != nil {
			t.Error("Load returned a session for a missing ID")
		}
	})

	t.Run("LoadExpired", func(t *testing.T) {
		expired := &Session{ID: NewID(), UserID: "user-2", ExpiresAt: time.Now().Add(-time.Minute)}
		if err := store.Save(ctx, expired); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := store.Load(ctx, expired.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got != nil {
			t.Error("Load returned an expired session")
		}
	})

	t.Run("Touch", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		if err := store.Touch(ctx, sess.ID, later); err != nil {
			t.Fatalf("Touch failed: %v", err)
		}
		got, err := store.Load(ctx, sess.ID)
		if err != nil || got == nil {
			t.Fatalf("Load after Touch = %v, %v", got, err)
		}
		if got.ExpiresAt.Unix() != later.Unix() {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, later)
		}
		// Touching a missing session is not an error.
		if err := store.Touch(ctx, "missing", later); err != nil {
			t.Errorf("Touch missing = %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, sess.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, err := store.Load(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got != nil {
			t.Error("session survives Delete")
		}
		if err := store.Delete(ctx, sess.ID); err != nil {
			t.Errorf("second Delete = %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeUnderTest(t, store)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(WithCleanupInterval(10 * time.Millisecond))
	defer store.Close()
	ctx := context.Background()

	expired := &Session{ID: NewID(), ExpiresAt: time.Now().Add(-time.Minute)}
	if err := store.Save(ctx, expired); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired session never swept")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	store.Close()

	if err := store.Save(context.Background(), &Session{ID: "x"}); err != ErrStoreClosed {
		t.Errorf("Save on closed store = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Load(context.Background(), "x"); err != ErrStoreClosed {
		t.Errorf("Load on closed store = %v, want ErrStoreClosed", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if len(a) != 64 {
		t.Errorf("ID length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("consecutive IDs collide")
	}
}
