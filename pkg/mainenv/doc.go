// Package mainenv implements the main storage environment: the
// append-only operation log, the
// per-primary-key metadata that tracks the current version and whether
// a key is live or tombstoned (its stored content hash is what detects
// idempotent re-applies), the content-hash index recording each applied
// record's hash, version and primary key, and the commit-state cursor that records how
// far each upstream source's operations have been durably applied.
package mainenv
