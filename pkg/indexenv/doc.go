// Package indexenv implements the two secondary index shapes of the
// cache engine: SortedInverted, a composite ordered key built from
// EncodeSortKey with the primary key appended so range scans can seek
// to a bound and walk forward or backward; and FullText, a
// token-to-primary-key multimap fed by a deterministic word tokenizer.
//
// Each IndexDefinition gets its own Env, backed by its own bbolt file,
// so index rebuilds never block the main environment's writer and a
// lagging index never stalls another index's worker. Every index
// tracks an advance_marker: the highest log_offset applied to it,
// published by the owning indexworker and consulted by readers to
// judge staleness.
package indexenv
