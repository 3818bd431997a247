package planner

import (
	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// leaf tags a flattened Comparison with its position in the original
// filter tree so candidate generation can track which leaves a
// particular scan consumes and fold the rest into the residual filter.
type leaf struct {
	idx  int
	expr Expr
}

// Select picks an index plan for query against the given registered
// indexes. Returns cacheerr.PlanRejected if the filter
// contains a disjunction.
func Select(indexes []NamedIndex, query Query) (Plan, error) {
	leaves, err := flatten(query.Filter)
	if err != nil {
		return Plan{}, err
	}

	// Ne and MatchesAny leaves are never covered by an index; leaving
	// them unclassified here means they are simply absent from every
	// candidate's `used` set, so residualFilter folds them back in.
	var fullText, equality, ranged []leaf
	for i, e := range leaves {
		l := leaf{idx: i, expr: e}
		switch {
		case e.Op == Contains:
			fullText = append(fullText, l)
		case e.Op == Eq:
			equality = append(equality, l)
		case e.Op.isRange():
			ranged = append(ranged, l)
		}
	}

	var sortedIndexes, fullTextIndexes []NamedIndex
	for _, ni := range indexes {
		switch ni.Def.Kind {
		case cachetypes.SortedInverted:
			sortedIndexes = append(sortedIndexes, ni)
		case cachetypes.FullText:
			fullTextIndexes = append(fullTextIndexes, ni)
		}
	}

	fullTextScans, fullTextUsed := matchFullTextScans(fullText, fullTextIndexes)

	candidates := buildCandidates(leaves, equality, ranged, fullText, fullTextUsed, fullTextScans, sortedIndexes, query.OrderBy)

	if len(candidates) == 0 {
		return seqScanPlan(leaves), nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best, nil
}

func matchFullTextScans(fullText []leaf, fullTextIndexes []NamedIndex) ([]IndexScan, map[int]bool) {
	used := make(map[int]bool)
	var scans []IndexScan
	for _, l := range fullText {
		for _, ni := range fullTextIndexes {
			if ni.Def.TextField == l.expr.FieldPosition {
				scans = append(scans, IndexScan{
					IndexID: ni.ID,
					Def:     ni.Def,
					Filters: []IndexFilter{{Op: Contains, Value: l.expr.Value}},
				})
				used[l.idx] = true
				break
			}
		}
	}
	return scans, used
}

func buildCandidates(all []Expr, equality, ranged, fullText []leaf, fullTextUsed map[int]bool, fullTextScans []IndexScan, sortedIndexes []NamedIndex, orderBy []OrderTerm) []Plan {
	var candidates []Plan

	rangeOptions := append([]*leaf{nil}, leafPointers(ranged)...)
	eqSubsetPerms := subsetPermutations(equality)

	for _, rangeOpt := range rangeOptions {
		for _, order := range eqSubsetPerms {
			if len(order) == 0 && rangeOpt == nil {
				if len(fullTextScans) > 0 && len(order) == 0 {
					candidates = append(candidates, finishCandidate(all, nil, order, rangeOpt, fullTextUsed, fullText, fullTextScans, orderBy))
				}
				continue
			}
			fieldPositions := make([]int, 0, len(order)+1)
			for _, l := range order {
				fieldPositions = append(fieldPositions, l.expr.FieldPosition)
			}
			if rangeOpt != nil {
				fieldPositions = append(fieldPositions, rangeOpt.expr.FieldPosition)
			}

			for _, ni := range sortedIndexes {
				if !isPrefixOf(fieldPositions, ni.Def) {
					continue
				}
				scan := IndexScan{IndexID: ni.ID, Def: ni.Def}
				for _, l := range order {
					scan.Filters = append(scan.Filters, IndexFilter{Op: Eq, Value: l.expr.Value})
				}
				if rangeOpt != nil {
					scan.Filters = append(scan.Filters, IndexFilter{Op: rangeOpt.expr.Op, Value: rangeOpt.expr.Value})
				}
				candidates = append(candidates, finishCandidate(all, &scan, order, rangeOpt, fullTextUsed, fullText, fullTextScans, orderBy))
			}
		}
	}
	return candidates
}

// isPrefixOf reports whether fieldPositions matches, in order, the
// leading len(fieldPositions) field positions of def's sort fields.
func isPrefixOf(fieldPositions []int, def cachetypes.IndexDefinition) bool {
	if len(def.SortFields) < len(fieldPositions) {
		return false
	}
	for i, pos := range fieldPositions {
		if def.SortFields[i].FieldPosition != pos {
			return false
		}
	}
	return true
}

func finishCandidate(all []Expr, sortedScan *IndexScan, order []leaf, rangeOpt *leaf, fullTextUsed map[int]bool, fullText []leaf, fullTextScans []IndexScan, orderBy []OrderTerm) Plan {
	used := make(map[int]bool, len(order)+1+len(fullText))
	for idx := range fullTextUsed {
		used[idx] = true
	}
	for _, l := range order {
		used[l.idx] = true
	}
	if rangeOpt != nil {
		used[rangeOpt.idx] = true
	}

	scans := append([]IndexScan{}, fullTextScans...)
	preSorted := len(orderBy) == 0
	if sortedScan != nil {
		scans = append(scans, *sortedScan)
		preSorted = checkPreSorted(*sortedScan, orderBy)
	}

	residual := residualFilter(all, used)
	initial, total := estimateCost(scans, residualLeafCount(all, used))

	return Plan{
		Scans:       scans,
		Residual:    residual,
		PreSorted:   preSorted,
		InitialCost: initial,
		TotalCost:   total,
	}
}

func checkPreSorted(scan IndexScan, orderBy []OrderTerm) bool {
	if len(orderBy) == 0 {
		return true
	}
	if scan.Def.Kind != cachetypes.SortedInverted {
		return false
	}
	consumed := len(scan.Filters)
	remaining := scan.Def.SortFields[consumed:]
	if len(remaining) < len(orderBy) {
		return false
	}
	sameDir, flippedDir := true, true
	for i, ot := range orderBy {
		if remaining[i].FieldPosition != ot.FieldPosition {
			return false
		}
		if remaining[i].Direction != ot.Direction {
			sameDir = false
		}
		if flip(remaining[i].Direction) != ot.Direction {
			flippedDir = false
		}
	}
	return sameDir || flippedDir
}

func flip(d cachetypes.Direction) cachetypes.Direction {
	if d == cachetypes.Asc {
		return cachetypes.Desc
	}
	return cachetypes.Asc
}

func residualFilter(all []Expr, used map[int]bool) *Expr {
	var remaining []Expr
	for i, e := range all {
		if !used[i] {
			remaining = append(remaining, e)
		}
	}
	switch len(remaining) {
	case 0:
		return nil
	case 1:
		return &remaining[0]
	default:
		e := And(remaining...)
		return &e
	}
}

func residualLeafCount(all []Expr, used map[int]bool) int {
	n := 0
	for i := range all {
		if !used[i] {
			n++
		}
	}
	return n
}

func seqScanPlan(leaves []Expr) Plan {
	var residual *Expr
	switch len(leaves) {
	case 0:
	case 1:
		residual = &leaves[0]
	default:
		e := And(leaves...)
		residual = &e
	}
	initial, total := estimateCost(nil, len(leaves))
	return Plan{SeqScan: true, Residual: residual, PreSorted: false, InitialCost: initial, TotalCost: total}
}

// flatten walks e, folding nested And nodes into a flat leaf list.
// Any Or node anywhere in the tree is rejected: the engine does not
// plan disjunctions; callers union client-side.
func flatten(e *Expr) ([]Expr, error) {
	if e == nil {
		return nil, nil
	}
	return flattenNode(*e)
}

func flattenNode(e Expr) ([]Expr, error) {
	switch e.Kind {
	case ExprOr:
		return nil, cacheerr.Wrap(cacheerr.PlanRejected, "planner.flatten", "disjunction is not supported; union client-side")
	case ExprAnd:
		var leaves []Expr
		for _, c := range e.Children {
			sub, err := flattenNode(c)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, sub...)
		}
		return leaves, nil
	default:
		return []Expr{e}, nil
	}
}

func leafPointers(ls []leaf) []*leaf {
	out := make([]*leaf, len(ls))
	for i := range ls {
		out[i] = &ls[i]
	}
	return out
}

// subsetPermutations returns every ordering of every subset of items,
// including the empty subset. Equality-filter counts are small in
// practice (a handful of predicates per query), so the factorial blowup
// of permuting every subset stays bounded; see DESIGN.md.
func subsetPermutations(items []leaf) [][]leaf {
	n := len(items)
	result := [][]leaf{{}}
	for mask := 1; mask < (1 << n); mask++ {
		var subset []leaf
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, items[i])
			}
		}
		result = append(result, permuteLeaves(subset)...)
	}
	return result
}

func permuteLeaves(items []leaf) [][]leaf {
	if len(items) <= 1 {
		return [][]leaf{append([]leaf{}, items...)}
	}
	var out [][]leaf
	for i := range items {
		rest := make([]leaf, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permuteLeaves(rest) {
			out = append(out, append([]leaf{items[i]}, p...))
		}
	}
	return out
}
