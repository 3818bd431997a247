// Package logreader tails an upstream operation log: a file of
// length-prefixed, codec-encoded Operation frames that a producer keeps
// appending to. A Reader seeks once to a caller-provided byte offset and
// then only moves forward, blocking with a sleep-and-retry loop whenever
// a read comes up short of the producer's current write position.
package logreader
