// Package canon produces canonical JSON for hashing and golden snapshots.
//
// Canonical output follows RFC 8785 where it matters for determinism:
//   - Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//   - No HTML escaping and no insignificant whitespace
//   - Strings are NFC normalized at the serialization boundary
//   - No floats and no null
//
// canon imports nothing internal. Stored-object digests in internal/store
// and scenario traces in internal/harness are built on it.
package canon
