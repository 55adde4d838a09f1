package blob

import (
	"io"
	"sync"
)

// Key identifies one materialized rendition of a remote resource.
// Distinct variants of the same resource are distinct cache entries.
type Key struct {
	// ResourceID is the stable identifier of the remote resource,
	// independent of variant.
	ResourceID string

	// Variant qualifies the rendition (e.g. "thumb", "orig").
	Variant string
}

// Handle is an opaque, locally valid reference to materialized binary
// content, distinct from the backing payload itself. A handle is valid
// from Acquire until the matching Release drops its reference count to
// zero; using it past that point is a caller contract violation and is
// not guarded at runtime.
type Handle struct {
	uri  string
	path string
	open func() (io.ReadCloser, error)
}

// URI returns the handle's transient URI.
func (h *Handle) URI() string { return h.uri }

// Path returns the local filesystem path backing the handle, or "" for
// handles that are not file-backed.
func (h *Handle) Path() string { return h.path }

// Open returns a reader over the materialized content.
func (h *Handle) Open() (io.ReadCloser, error) { return h.open() }

// entry is one registry slot. The payload is retained so an entry can be
// inspected without re-fetching.
type entry struct {
	handle   *Handle
	refCount int
	payload  []byte
}

// Registry is a process-wide, mutex-guarded cache of materialized blob
// handles with per-key reference counting. The zero value is not usable;
// construct with NewRegistry.
type Registry struct {
	mat Materializer

	mu      sync.Mutex
	entries map[Key]*entry

	metrics *registryMetrics
}

// Option configures a Registry.
type Option func(*Registry)

// NewRegistry creates a registry that materializes handles with mat.
func NewRegistry(mat Materializer, opts ...Option) *Registry {
	r := &Registry{
		mat:     mat,
		entries: make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns a handle for (resourceID, variant), materializing one
// from payload on first acquisition.
//
// If an entry already exists for the key, its reference count is
// incremented and the existing handle is returned; payload is discarded
// without inspection. Repeated acquisition before any matching Release
// therefore always yields the same handle value, and only one local
// resource is allocated per key.
//
// If materialization fails the error is returned and the registry is left
// unchanged.
func (r *Registry) Acquire(resourceID, variant string, payload []byte) (*Handle, error) {
	key := Key{ResourceID: resourceID, Variant: variant}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.refCount++
		r.metrics.dedupHit()
		return e.handle, nil
	}

	h, err := r.mat.Materialize(key, payload)
	if err != nil {
		return nil, err
	}

	r.entries[key] = &entry{handle: h, refCount: 1, payload: payload}
	r.metrics.materialized(len(r.entries))
	return h, nil
}

// Release drops one reference to (resourceID, variant). When the count
// reaches zero the handle is revoked and the entry removed in the same
// step; the map never holds a zero-count entry.
//
// Releasing a key with no outstanding entry is a silent no-op: view
// teardown ordering is not guaranteed, so double-release must be
// tolerated.
func (r *Registry) Release(resourceID, variant string) {
	key := Key{ResourceID: resourceID, Variant: variant}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		r.metrics.releaseMiss()
		return
	}

	e.refCount--
	if e.refCount > 0 {
		return
	}

	delete(r.entries, key)
	r.mat.Revoke(e.handle)
	r.metrics.revoked(len(r.entries))
}

// RevokeAll unconditionally revokes every handle and clears the map,
// ignoring reference counts. Intended for global teardown, not routine
// use.
func (r *Registry) RevokeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.entries {
		delete(r.entries, key)
		r.mat.Revoke(e.handle)
	}
	r.metrics.revoked(0)
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RefCount reports the reference count for (resourceID, variant), or 0 if
// no entry exists.
func (r *Registry) RefCount(resourceID, variant string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[Key{ResourceID: resourceID, Variant: variant}]; ok {
		return e.refCount
	}
	return 0
}

// Lease is a scoped acquisition: it pairs one Acquire with exactly one
// Release, so the release runs on every exit path of the consuming scope.
//
//	lease, err := reg.Lease("post-1", "thumb", payload)
//	if err != nil { ... }
//	defer lease.Close()
//	serve(lease.Handle())
type Lease struct {
	reg    *Registry
	key    Key
	handle *Handle
	once   sync.Once
}

// Lease acquires (resourceID, variant) and wraps the handle in a Lease
// whose Close performs the paired Release exactly once.
func (r *Registry) Lease(resourceID, variant string, payload []byte) (*Lease, error) {
	h, err := r.Acquire(resourceID, variant, payload)
	if err != nil {
		return nil, err
	}
	return &Lease{
		reg:    r,
		key:    Key{ResourceID: resourceID, Variant: variant},
		handle: h,
	}, nil
}

// Handle returns the leased handle. Valid until Close.
func (l *Lease) Handle() *Handle { return l.handle }

// Close releases the lease. Safe to call more than once; only the first
// call releases.
func (l *Lease) Close() error {
	l.once.Do(func() {
		l.reg.Release(l.key.ResourceID, l.key.Variant)
	})
	return nil
}
