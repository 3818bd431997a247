// Package applyloop drives one cache version's write path: it tails an
// operation-log Reader, applies each operation to the main environment
// under a single write transaction, durably advances the commit
// offset, and fans the same operation out to every registered index
// worker. It is the one piece of cachedb that ties logreader, mainenv,
// and indexworker together into a running process; nothing else reads
// the log.
package applyloop
