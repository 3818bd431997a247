// Package executor runs a planner.Plan against a cache's main and
// secondary index environments: it turns each IndexScan into a lazy
// stream of primary keys, intersects multiple streams with a chunked
// roaring-bitmap iterator, loads and filters the surviving records, and
// applies ordering, skip, and limit.
package executor
