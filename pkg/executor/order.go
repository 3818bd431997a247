package executor

import (
	"sort"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/planner"
)

// sortRecords orders rows in place per terms, breaking ties on each
// successive term in turn. Used whenever Plan.PreSorted is false, since
// then no single index scan's natural order already satisfies OrderBy.
func sortRecords(rows []matchedRecord, terms []planner.OrderTerm) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].rec, rows[j].rec
		for _, t := range terms {
			cmp, err := a.Values[t.FieldPosition].Compare(b.Values[t.FieldPosition])
			if err != nil || cmp == 0 {
				continue
			}
			if t.Direction == cachetypes.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
