package media

import (
	"context"
	"fmt"

	"github.com/inkpress-dev/inkpress/pkg/blob"
)

// Previewer is the fetch-then-acquire pipeline behind media previews: it
// loads a media object's bytes from the store, derives the requested
// variant, and acquires a display-ready handle from the blob registry.
//
// Two concurrent previews of the same (media, variant) may both fetch and
// derive, but the registry deduplicates at the handle level: the second
// caller's payload is discarded in favor of the first entry's handle.
// Payload equality per media ID makes this safe.
type Previewer struct {
	store    Store
	registry *blob.Registry
}

// NewPreviewer creates a previewer over store and registry.
func NewPreviewer(store Store, registry *blob.Registry) *Previewer {
	return &Previewer{store: store, registry: registry}
}

// Preview returns a leased handle to the named variant of the object at
// storageKey. The caller must Close the lease when the preview is no
// longer displayed; closing releases the underlying registry entry.
func (p *Previewer) Preview(ctx context.Context, mediaID, storageKey, variant string) (*blob.Lease, error) {
	v, ok := Variants[variant]
	if !ok {
		return nil, fmt.Errorf("media: unknown variant %q", variant)
	}

	payload, err := ReadAll(ctx, p.store, storageKey)
	if err != nil {
		return nil, err
	}

	if v.MaxDim > 0 {
		payload, err = DeriveVariant(payload, v)
		if err != nil {
			return nil, err
		}
	}

	return p.registry.Lease(mediaID, v.Name, payload)
}
