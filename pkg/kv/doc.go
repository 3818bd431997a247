// Package kv wraps go.etcd.io/bbolt with the small set of transactional
// primitives the cache engine's storage layer is built from: Map
// (single-value-per-key), MultiMap (a sorted set of values per key, for
// buckets bbolt itself has no native duplicate-key support for), Option
// (a single stored value at a fixed key) and Counter (a monotonic u64
// generator). Every bucket used by the main and index environments is
// one of these four shapes.
package kv
