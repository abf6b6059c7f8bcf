// Package managecms provides the mutation side of a headless content store:
// per-locale field updates and copies on entries, and per-locale file
// variants on assets.
//
// The Gateway interface is the narrow surface callers use to mutate content.
// It is implemented by the in-process Service (backed by a Repository and one
// or more BlobStores) and by the HTTP client in the client subpackage, which
// talks to the management API exposed by the api subpackage.
//
// Consistency
//
// A read issued immediately after a write is not guaranteed to observe it.
// Remote readers go through caches and every write is a separate publish, so
// callers must not rely on read-after-write.
//
// Copy semantics
//
// CopyField never fails because the source locale has no value: that case is
// a silent no-op. With onlyIfTargetEmpty set, a non-empty target is left as
// is, which makes repeated copies idempotent.
package managecms
