package executor

import (
	"strings"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/planner"
)

// evalExpr re-checks a residual filter expression against a loaded
// record: the leaves an index scan already covered are never passed
// here (planner.Select folds only uncovered leaves into Plan.Residual),
// so every comparison still has to be proven true.
func evalExpr(e *planner.Expr, rec cachetypes.Record) (bool, error) {
	if e == nil {
		return true, nil
	}
	switch e.Kind {
	case planner.ExprAnd:
		for _, c := range e.Children {
			ok, err := evalExpr(&c, rec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case planner.ExprOr:
		return false, cacheerr.Wrap(cacheerr.PlanRejected, "executor.evalExpr", "residual filter must not contain Or")
	default:
		return evalComparison(*e, rec)
	}
}

func evalComparison(e planner.Expr, rec cachetypes.Record) (bool, error) {
	if e.FieldPosition < 0 || e.FieldPosition >= len(rec.Values) {
		return false, cacheerr.Wrap(cacheerr.Schema, "executor.evalComparison", "field position %d out of range", e.FieldPosition)
	}
	got := rec.Values[e.FieldPosition]

	switch e.Op {
	case planner.Eq:
		return got.Equal(e.Value), nil
	case planner.Ne:
		return !got.Equal(e.Value), nil
	case planner.Lt, planner.Lte, planner.Gt, planner.Gte:
		cmp, err := got.Compare(e.Value)
		if err != nil {
			return false, cacheerr.Wrap(cacheerr.Schema, "executor.evalComparison", "%v", err)
		}
		switch e.Op {
		case planner.Lt:
			return cmp < 0, nil
		case planner.Lte:
			return cmp <= 0, nil
		case planner.Gt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case planner.Contains:
		text, ok := got.AsString()
		if !ok {
			return false, nil
		}
		phrase, ok := e.Value.AsString()
		if !ok {
			return false, cacheerr.Wrap(cacheerr.Schema, "executor.evalComparison", "Contains value is not a string")
		}
		haystack := strings.Join(indexenv.Tokenize(text), " ")
		for _, tok := range indexenv.Tokenize(phrase) {
			if !strings.Contains(haystack, tok) {
				return false, nil
			}
		}
		return true, nil
	case planner.MatchesAny:
		for _, v := range e.Values {
			if got.Equal(v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, cacheerr.Wrap(cacheerr.Schema, "executor.evalComparison", "unknown operator %v", e.Op)
	}
}
