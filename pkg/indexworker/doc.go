// Package indexworker runs the bounded worker pool that rebuilds
// secondary index environments from operations the main writer has
// already committed. One goroutine owns each index's write
// transactions; it buffers incoming jobs and commits in batches of up
// to N operations or after T elapses, publishing the index's
// advance marker to the highest log offset applied in that commit.
package indexworker
