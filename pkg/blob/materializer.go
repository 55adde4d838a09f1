package blob

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrEmptyPayload is returned when materialization is attempted with no
// payload bytes.
var ErrEmptyPayload = errors.New("blob: empty payload")

// Materializer turns a raw payload into a locally valid Handle and frees
// the backing resource on Revoke. Implementations must be safe for
// concurrent use; the registry calls them under its own lock.
type Materializer interface {
	// Materialize allocates a local resource for payload and returns a
	// handle to it. A failure must leave no residue behind.
	Materialize(key Key, payload []byte) (*Handle, error)

	// Revoke frees the local resource behind h. Revoking an already
	// revoked handle is a no-op.
	Revoke(h *Handle) error
}

// FileMaterializer materializes payloads as files in a scratch directory.
// Revoke removes the file.
type FileMaterializer struct {
	dir string
}

// NewFileMaterializer creates a file materializer rooted at dir. The
// directory is created if missing.
func NewFileMaterializer(dir string) (*FileMaterializer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("blob: scratch dir: %w", err)
	}
	return &FileMaterializer{dir: dir}, nil
}

// Materialize writes payload to a uniquely named scratch file.
func (m *FileMaterializer) Materialize(key Key, payload []byte) (*Handle, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	path := filepath.Join(m.dir, handleID())
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return nil, fmt.Errorf("blob: materialize %s/%s: %w", key.ResourceID, key.Variant, err)
	}

	return &Handle{
		uri:  "file://" + path,
		path: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Revoke removes the scratch file behind h.
func (m *FileMaterializer) Revoke(h *Handle) error {
	if h == nil || h.path == "" {
		return nil
	}
	err := os.Remove(h.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryMaterializer materializes payloads as in-process byte slices.
// Useful for tests and small previews that never need a file path.
type MemoryMaterializer struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryMaterializer creates an in-memory materializer.
func NewMemoryMaterializer() *MemoryMaterializer {
	return &MemoryMaterializer{blobs: make(map[string][]byte)}
}

// Materialize retains a copy of payload keyed by a fresh handle ID.
func (m *MemoryMaterializer) Materialize(key Key, payload []byte) (*Handle, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	id := handleID()
	buf := make([]byte, len(payload))
	copy(buf, payload)

	m.mu.Lock()
	m.blobs[id] = buf
	m.mu.Unlock()

	return &Handle{
		uri: "mem://" + id,
		open: func() (io.ReadCloser, error) {
			m.mu.Lock()
			b, ok := m.blobs[id]
			m.mu.Unlock()
			if !ok {
				return nil, fmt.Errorf("blob: handle mem://%s revoked", id)
			}
			return io.NopCloser(bytes.NewReader(b)), nil
		},
	}, nil
}

// Revoke drops the retained bytes behind h.
func (m *MemoryMaterializer) Revoke(h *Handle) error {
	if h == nil || len(h.uri) <= len("mem://") {
		return nil
	}
	id := h.uri[len("mem://"):]

	m.mu.Lock()
	delete(m.blobs, id)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live in-memory blobs.
func (m *MemoryMaterializer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// handleID generates a cryptographically random handle ID.
func handleID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
