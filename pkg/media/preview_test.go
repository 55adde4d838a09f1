package media

import (
	"bytes"
	"context"
	"testing"

	"github.com/inkpress-dev/inkpress/pkg/blob"
)

func TestPreviewer(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ctx := context.Background()

	payload := testPNG(t, 640, 480)
	if _, err := store.Save(ctx, "ab/cat.png", "image/png", bytes.NewReader(payload)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reg := blob.NewRegistry(blob.NewMemoryMaterializer())
	prev := NewPreviewer(store, reg)

	t.Run("LeaseAndDedup", func(t *testing.T) {
		l1, err := prev.Preview(ctx, "media-1", "ab/cat.png", "thumb")
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		l2, err := prev.Preview(ctx, "media-1", "ab/cat.png", "thumb")
		if err != nil {
			t.Fatalf("second Preview failed: %v", err)
		}

		// Both fetches ran, but the registry deduplicated the handle.
		if l1.Handle() != l2.Handle() {
			t.Error("previews of the same key got distinct handles")
		}
		if got := reg.RefCount("media-1", "thumb"); got != 2 {
			t.Errorf("refCount = %d, want 2", got)
		}

		l1.Close()
		if got := reg.RefCount("media-1", "thumb"); got != 1 {
			t.Errorf("refCount after one close = %d, want 1", got)
		}
		l2.Close()
		if reg.Len() != 0 {
			t.Errorf("registry holds %d entries after both closes, want 0", reg.Len())
		}
	})

	t.Run("VariantsIndependent", func(t *testing.T) {
		thumb, err := prev.Preview(ctx, "media-1", "ab/cat.png", "thumb")
		if err != nil {
			t.Fatalf("Preview thumb failed: %v", err)
		}
		defer thumb.Close()
		orig, err := prev.Preview(ctx, "media-1", "ab/cat.png", "orig")
		if err != nil {
			t.Fatalf("Preview orig failed: %v", err)
		}
		defer orig.Close()

		if thumb.Handle() == orig.Handle() {
			t.Error("thumb and orig share a handle")
		}
	})

	t.Run("UnknownVariant", func(t *testing.T) {
		if _, err := prev.Preview(ctx, "media-1", "ab/cat.png", "gigantic"); err == nil {
			t.Fatal("unknown variant accepted")
		}
	})

	t.Run("MissingObject", func(t *testing.T) {
		if _, err := prev.Preview(ctx, "media-2", "zz/none.png", "thumb"); err == nil {
			t.Fatal("missing object accepted")
		}
		if reg.Len() != 0 {
			t.Errorf("failed preview left %d registry entries", reg.Len())
		}
	})
}
