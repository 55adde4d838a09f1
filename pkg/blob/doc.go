// Package blob provides a reference-counted registry of locally
// materialized blob handles.
//
// UI-facing code frequently needs a short-lived local handle to remote
// binary content (a thumbnail preview, an editor attachment). The registry
// deduplicates handles per (resource, variant) key: the first acquisition
// materializes the payload into a handle, later acquisitions for the same
// key share that handle, and the handle is revoked exactly when the last
// holder releases it.
//
// The registry is an explicitly constructed service. Application wiring
// creates one instance and passes it to every consumer:
//
//	reg := blob.NewRegistry(blob.NewFileMaterializer(scratchDir))
//	defer reg.RevokeAll()
//
//	h, err := reg.Acquire("post-1", "thumb", payload)
//	...
//	reg.Release("post-1", "thumb")
//
// Consumers that want the release guaranteed on every exit path should use
// Lease instead of raw Acquire/Release pairs.
package blob
