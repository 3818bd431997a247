package planner

import "github.com/cuemby/cachedb/pkg/cachetypes"

// IndexFilter binds one field position of an IndexScan to the
// comparison it must satisfy. An IndexScan's Filters cover a leading
// run of the index's fields; every field position past len(Filters) is
// unconstrained by that scan and contributes only to ordering.
type IndexFilter struct {
	Op    CompareOp
	Value cachetypes.Field
}

// IndexScan is one index this plan will consult, plus the ordered
// filters to seek/bound with. Filters[i] corresponds to index Def's
// i-th sort field for a SortedInverted scan, or to the single search
// token for a FullText scan.
type IndexScan struct {
	IndexID string
	Def     cachetypes.IndexDefinition
	Filters []IndexFilter
}

// Plan is the planner's output: either one or more IndexScans to
// intersect, or a SeqScan fallback.
type Plan struct {
	SeqScan bool
	Scans   []IndexScan

	// Residual is what remains of the query filter after the leaves
	// covered by Scans are subtracted; the executor re-evaluates it
	// against each surviving record. Nil means fully covered.
	Residual *Expr

	// PreSorted is true when a scan's natural order already satisfies
	// Query.OrderBy, so the executor skips the in-memory sort step.
	PreSorted bool

	InitialCost int // estimated seeks
	TotalCost   int // estimated key comparisons
}

func (p Plan) cost() int { return p.InitialCost + 10*p.TotalCost }

// better reports whether a is preferred over b: lower
// cost wins; ties prefer the pre-sorted plan, then fewer scans.
func better(a, b Plan) bool {
	ac, bc := a.cost(), b.cost()
	if ac != bc {
		return ac < bc
	}
	if a.PreSorted != b.PreSorted {
		return a.PreSorted
	}
	return len(a.Scans) < len(b.Scans)
}
