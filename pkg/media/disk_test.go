package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestDiskStore(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ctx := context.Background()

	t.Run("SaveAndOpen", func(t *testing.T) {
		obj, err := store.Save(ctx, "ab/cat.png", "image/png", bytes.NewReader([]byte("png-bytes")))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if obj.Size != int64(len("png-bytes")) {
			t.Errorf("Size = %d", obj.Size)
		}

		rc, err := store.Open(ctx, "ab/cat.png")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "png-bytes" {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("Stat", func(t *testing.T) {
		obj, err := store.Stat(ctx, "ab/cat.png")
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if obj.ContentType != "image/png" {
			t.Errorf("ContentType = %q, want image/png", obj.ContentType)
		}
	})

	t.Run("List", func(t *testing.T) {
		if _, err := store.Save(ctx, "cd/dog.jpg", "image/jpeg", bytes.NewReader([]byte("jpg"))); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		keys, err := store.List(ctx, "ab/")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(keys) != 1 || keys[0] != "ab/cat.png" {
			t.Errorf("List = %v, want [ab/cat.png]", keys)
		}
		all, err := store.List(ctx, "")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("List all = %v, want 2 keys", all)
		}
	})

	t.Run("OpenMissing", func(t *testing.T) {
		if _, err := store.Open(ctx, "nope/missing.png"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open missing = %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "ab/cat.png"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Stat(ctx, "ab/cat.png"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Stat after delete = %v, want ErrNotFound", err)
		}
		// Deleting a missing key is not an error.
		if err := store.Delete(ctx, "ab/cat.png"); err != nil {
			t.Errorf("second Delete = %v", err)
		}
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		if _, err := store.Open(ctx, "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
			t.Errorf("traversal key = %v, want ErrNotFound", err)
		}
		if _, err := store.Save(ctx, "../evil", "text/plain", bytes.NewReader([]byte("x"))); !errors.Is(err, ErrNotFound) {
			t.Errorf("traversal save = %v, want ErrNotFound", err)
		}
	})
}
