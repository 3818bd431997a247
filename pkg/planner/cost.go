package planner

import "github.com/cuemby/cachedb/pkg/cachetypes"

// estimateCost returns (initial_cost, total_cost) for a candidate: one
// seek per index scan, plus key-comparison weight per filter kind.
// There is no cardinality/statistics model (the engine keeps none), so
// weights are fixed per operator class: equality narrows fastest,
// range scans and full-text token lookups less so (equal weight), and a
// residual leaf (evaluated per surviving record rather than during the
// scan) carries a small fixed per-leaf weight. A SeqScan's total_cost
// is a large fixed constant representing a full PrimaryKeyMetadata
// walk. This fixed-weight model is a documented simplification (see
// DESIGN.md); a future revision could replace it with sampled
// cardinality once the engine tracks per-index statistics.
// estimateCost is called with scans == nil only for a SeqScan; every
// index candidate passes a non-nil (possibly empty, for fullText-only
// candidates with no sorted scan) slice.
func estimateCost(scans []IndexScan, residualLeaves int) (initial, total int) {
	if scans == nil {
		return 1, seqScanCost
	}
	initial = len(scans)
	for _, s := range scans {
		switch s.Def.Kind {
		case cachetypes.SortedInverted:
			for _, f := range s.Filters {
				if f.Op == Eq {
					total += eqCost
				} else {
					total += rangeCost
				}
			}
		case cachetypes.FullText:
			total += fullTextCost
		}
	}
	total += residualLeaves * residualCost
	return
}

// rangeCost is kept below residualCost so a candidate that can fold a
// range leaf into an index scan is always preferred over one that
// leaves it for residual re-evaluation; residual filtering scans every
// record the narrower index range would have excluded outright.
const (
	eqCost       = 1
	rangeCost    = 2
	fullTextCost = 2
	residualCost = 3
	seqScanCost  = 1000
)
