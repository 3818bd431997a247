// Package accessfilter wraps an executor.Executor with a per-caller
// visibility rule: a filter expression ANDed into every incoming query
// before planning, and a column allowlist applied to every returned
// record afterward. Callers that only ever see an AccessFilter-wrapped
// executor cannot express a query that observes a row or a column the
// filter excludes.
package accessfilter
