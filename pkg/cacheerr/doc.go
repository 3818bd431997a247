// Package cacheerr defines the closed set of error kinds the cache
// engine surfaces to collaborators:
// Storage, Codec, Schema, NotFound, PlanRejected, Cancelled, and the
// soft StaleIndex condition. Every error a caller needs to branch on
// carries one of these kinds; internal detail is still available via
// errors.Unwrap.
package cacheerr
