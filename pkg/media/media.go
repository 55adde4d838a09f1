// Package media implements binary object storage for uploaded site
// media, with pluggable disk and S3 backends, variant (thumbnail)
// derivation, and a preview pipeline feeding the blob registry.
package media

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a stored object doesn't exist.
var ErrNotFound = errors.New("media: object not found")

// ErrTooLarge is returned when an upload exceeds the size limit.
var ErrTooLarge = errors.New("media: file too large")

// ErrUnsupportedType is returned when an upload's content type is not in
// the allow-list.
var ErrUnsupportedType = errors.New("media: unsupported content type")

// Object describes a stored media object.
type Object struct {
	// Key is the storage key within the backend.
	Key string

	// ContentType is the MIME type recorded at save time.
	ContentType string

	// Size is the object size in bytes.
	Size int64

	// ModTime is the backend's last-modified time.
	ModTime time.Time

	// URL is a direct-access URL when the backend provides one
	// (S3 presigned GET); empty for disk storage.
	URL string
}

// Store is the interface for media storage backends. Implement this
// interface to use GCS or other storage.
type Store interface {
	// Save stores the object under key, replacing any existing object.
	Save(ctx context.Context, key, contentType string, r io.Reader) (*Object, error)

	// Open returns a reader over the object's bytes.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat describes the object without reading it.
	Stat(ctx context.Context, key string) (*Object, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll loads an object's bytes in one call.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
