package accessfilter

import (
	"context"
	"time"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/executor"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/planner"
)

// Phase is a cache's coarse synchronization state, derived from how far
// every registered index's advance_marker trails the main environment's
// commit offset.
type Phase int

const (
	// Streaming means every index's advance_marker is within
	// LagThreshold bytes of operation-log offset of
	// main.commit_state.offset: query results are effectively current.
	Streaming Phase = iota
	// Snapshotting means at least one index is still catching up from
	// more than LagThreshold bytes of log offset behind.
	Snapshotting
)

func (p Phase) String() string {
	if p == Snapshotting {
		return "snapshotting"
	}
	return "streaming"
}

// DefaultLagThreshold is the gap, in bytes of operation-log offset,
// between an index's advance_marker and main's commit offset beyond
// which Phase reports
// Snapshotting rather than Streaming.
const DefaultLagThreshold = 1000

// AccessFilter is a caller's visibility rule: Filter restricts which
// rows a query may ever match, and Fields restricts which columns of a
// matched row are ever returned. A zero-value AccessFilter grants full
// visibility — no row restriction, no column redaction.
type AccessFilter struct {
	// Filter, when non-nil, is ANDed into every incoming Query.Filter
	// before planning. A row that fails it never reaches the result
	// set, so it cannot affect Query.Limit's row count.
	Filter *planner.Expr

	// Fields, when non-empty, lists the field names visible in
	// returned records by name. Every other field is redacted to Null
	// after the row has already been selected, ordered, and limited —
	// redaction never changes which rows are returned or how many.
	Fields []string
}

// Reader runs queries through an Executor with an AccessFilter applied:
// callers of Query never see a row the filter excludes, or a column
// value outside the allowed field set.
type Reader struct {
	ex     *executor.Executor
	schema cachetypes.Schema
	access AccessFilter

	// allowed caches the resolved field positions of access.Fields,
	// computed once against schema rather than per query.
	allowed map[int]bool

	lagThreshold uint64
}

// New wraps ex with access, resolving access.Fields against schema
// once up front.
func New(ex *executor.Executor, schema cachetypes.Schema, access AccessFilter) *Reader {
	r := &Reader{ex: ex, schema: schema, access: access, lagThreshold: DefaultLagThreshold}
	if len(access.Fields) > 0 {
		r.allowed = make(map[int]bool, len(access.Fields))
		for _, name := range access.Fields {
			if pos := schema.FieldPosition(name); pos >= 0 {
				r.allowed[pos] = true
			}
		}
	}
	return r
}

// SetLagThreshold overrides DefaultLagThreshold for Phase.
func (r *Reader) SetLagThreshold(n uint64) { r.lagThreshold = n }

// Schema returns the schema Reader resolves access.Fields and incoming
// filters against.
func (r *Reader) Schema() cachetypes.Schema { return r.schema }

// Query plans and executes query against the wrapped indexes with the
// access filter ANDed in, then redacts the result's columns.
func (r *Reader) Query(ctx context.Context, indexes []planner.NamedIndex, query planner.Query, now time.Time) ([]cachetypes.Record, error) {
	restricted := r.restrict(query)

	plan, err := planner.Select(indexes, restricted)
	if err != nil {
		return nil, err
	}
	records, err := r.ex.Execute(ctx, plan, restricted, now)
	if err != nil {
		return nil, err
	}

	r.redact(records)
	return records, nil
}

// Count reports how many rows query's filter matches with the access
// filter ANDed in first, exactly as Query does, ignoring
// Query.Limit/Skip — a caller's visible row count must not depend on
// pagination.
func (r *Reader) Count(ctx context.Context, indexes []planner.NamedIndex, query planner.Query, now time.Time) (uint64, error) {
	restricted := r.restrict(query)

	plan, err := planner.Select(indexes, restricted)
	if err != nil {
		return 0, err
	}
	return r.ex.Count(ctx, plan, restricted, now)
}

// Phase reports whether every index this reader's Executor can reach is
// caught up with the main environment's commit offset within
// lagThreshold bytes of log offset (Streaming), or at least one is still behind
// (Snapshotting).
func (r *Reader) Phase() (Phase, error) {
	var commitOffset uint64
	if err := r.ex.Main.View(func(txn kv.Txn) error {
		state, err := r.ex.Main.GetCommitState(txn)
		if err != nil {
			return err
		}
		commitOffset = state.OffsetApplied
		return nil
	}); err != nil {
		return Streaming, err
	}

	for _, env := range r.ex.Indexes {
		var marker uint64
		if err := env.View(func(txn kv.Txn) error {
			m, err := env.AdvanceMarker(txn)
			if err != nil {
				return err
			}
			marker = m
			return nil
		}); err != nil {
			return Streaming, err
		}
		if commitOffset > marker && commitOffset-marker > r.lagThreshold {
			return Snapshotting, nil
		}
	}
	return Streaming, nil
}

// restrict returns a copy of query with access.Filter ANDed into its
// Filter. It must run before planning so that the filter participates
// in index selection and in Query.Limit's row count, exactly as any
// other filter leaf would.
func (r *Reader) restrict(query planner.Query) planner.Query {
	if r.access.Filter == nil {
		return query
	}
	restricted := query
	switch {
	case restricted.Filter == nil:
		f := *r.access.Filter
		restricted.Filter = &f
	default:
		and := planner.And(*restricted.Filter, *r.access.Filter)
		restricted.Filter = &and
	}
	return restricted
}

// redact nulls every field not named in access.Fields, in place. It
// runs after Execute has already applied ordering, skip, and limit, so
// it never changes which rows were returned or how many.
func (r *Reader) redact(records []cachetypes.Record) {
	if len(r.access.Fields) == 0 {
		return
	}
	for i := range records {
		for pos := range records[i].Values {
			if !r.allowed[pos] {
				records[i].Values[pos] = cachetypes.NewNull()
			}
		}
	}
}
