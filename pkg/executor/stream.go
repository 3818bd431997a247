package executor

import (
	"bytes"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/planner"
)

// pkStream is a lazy, chunk-advanceable source of primary keys: one
// IndexScan (or, for a FullText scan, one search token within it)
// reduces to one pkStream. next returns up to n primary keys and
// whether the stream has more beyond what it returned.
type pkStream interface {
	next(n int) (pks [][]byte, more bool, err error)
}

// newScanStreams expands one IndexScan into its constituent pkStreams:
// exactly one for a SortedInverted scan (bounded by its Filters), or
// one per distinct token for a FullText scan, since the search phrase
// is itself a conjunction.
func newScanStreams(txn kv.Txn, env *indexenv.Env, scan planner.IndexScan) ([]pkStream, error) {
	switch scan.Def.Kind {
	case cachetypes.SortedInverted:
		lower, upper, rangeFilter, rangePos, err := sortedScanBounds(scan)
		if err != nil {
			return nil, err
		}
		cur, err := env.EntriesCursor(txn)
		if err != nil {
			return nil, err
		}
		return []pkStream{&sortedScanStream{
			def:         scan.Def,
			cur:         cur,
			lower:       lower,
			upper:       upper,
			rangeFilter: rangeFilter,
			rangePos:    rangePos,
		}}, nil
	case cachetypes.FullText:
		if len(scan.Filters) != 1 {
			return nil, cacheerr.Wrap(cacheerr.Schema, "executor.newScanStreams", "full-text scan %s: want exactly one filter", scan.IndexID)
		}
		phrase, ok := scan.Filters[0].Value.AsString()
		if !ok {
			return nil, cacheerr.Wrap(cacheerr.Schema, "executor.newScanStreams", "full-text scan %s: filter value is not a string", scan.IndexID)
		}
		tokens := indexenv.Tokenize(phrase)
		streams := make([]pkStream, 0, len(tokens))
		for _, tok := range tokens {
			cur, err := env.TokenCursor(txn, tok)
			if err != nil {
				return nil, err
			}
			streams = append(streams, &tokenScanStream{cur: cur})
		}
		return streams, nil
	default:
		return nil, cacheerr.Wrap(cacheerr.Schema, "executor.newScanStreams", "unknown index kind for %s", scan.IndexID)
	}
}

// sortedScanBounds turns a SortedInverted IndexScan's Filters into a
// byte-range [lower, upper] over the index's entries bucket, plus the
// range comparison (if any) the caller must still re-check per key
// (strict Lt/Lte/Gt/Gte bounds are not expressed as byte ranges; see
// sortedScanStream.next).
func sortedScanBounds(scan planner.IndexScan) (lower, upper []byte, rangeFilter *planner.IndexFilter, rangePos int, err error) {
	eqCount := len(scan.Filters)
	var rf *planner.IndexFilter
	if eqCount > 0 && scan.Filters[eqCount-1].Op != planner.Eq {
		rf = &scan.Filters[eqCount-1]
		eqCount--
	}

	eqValues := make([]cachetypes.Field, eqCount)
	for i := 0; i < eqCount; i++ {
		eqValues[i] = scan.Filters[i].Value
	}
	prefix := codec.EncodeSortPrefix(scan.Def, eqValues)
	lower = prefix
	upper = prefixUpperBound(prefix)

	if rf == nil {
		return lower, upper, nil, eqCount, nil
	}
	return lower, upper, rf, eqCount, nil
}

// prefixUpperBound returns the smallest byte string greater than every
// string that has prefix as a leading substring, or nil if no such
// bound exists (prefix is empty or all 0xFF), meaning unbounded above.
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// sortedScanStream walks a SortedInverted index's entries bucket within
// [lower, upper], optionally re-checking a trailing range comparison
// (rangeFilter) against the field at rangePos since byte bounds alone
// cannot express strict Lt/Gt without fragile prefix-increment math.
// When the range field is Asc, ascending byte order matches logical
// order within the bounds, so a failing Lt/Lte comparison can never
// succeed again later in the walk and ends the stream early. A Desc
// field is bit-complemented at encode time, so the walk visits its
// values in descending order; there a failing key is skipped instead.
type sortedScanStream struct {
	def         cachetypes.IndexDefinition
	cur         *kv.Cursor
	lower       []byte
	upper       []byte
	rangeFilter *planner.IndexFilter
	rangePos    int

	started bool
	done    bool
}

func (s *sortedScanStream) next(n int) ([][]byte, bool, error) {
	if s.done {
		return nil, false, nil
	}
	var out [][]byte
	var k []byte
	for len(out) < n {
		if !s.started {
			s.started = true
			if s.lower == nil {
				k, _ = s.cur.First()
			} else {
				k, _ = s.cur.Seek(s.lower)
			}
		} else {
			k, _ = s.cur.Next()
		}
		if k == nil || (s.upper != nil && bytes.Compare(k, s.upper) > 0) {
			s.done = true
			return out, false, nil
		}
		if s.rangeFilter != nil {
			ok, stop, err := checkRange(s.def, k, s.rangePos, *s.rangeFilter)
			if err != nil {
				return nil, false, err
			}
			if stop && s.def.SortFields[s.rangePos].Direction == cachetypes.Asc {
				s.done = true
				return out, false, nil
			}
			if !ok {
				continue
			}
		}
		_, pk, err := codec.DecodeSortKey(s.def, k)
		if err != nil {
			return nil, false, err
		}
		out = append(out, pk)
	}
	return out, true, nil
}

func checkRange(def cachetypes.IndexDefinition, key []byte, pos int, rf planner.IndexFilter) (ok, stop bool, err error) {
	values, _, err := codec.DecodeSortKey(def, key)
	if err != nil {
		return false, false, err
	}
	cmp, err := values[pos].Compare(rf.Value)
	if err != nil {
		return false, false, cacheerr.Wrap(cacheerr.Schema, "executor.checkRange", "%v", err)
	}
	switch rf.Op {
	case planner.Lt:
		if cmp >= 0 {
			return false, true, nil
		}
		return true, false, nil
	case planner.Lte:
		if cmp > 0 {
			return false, true, nil
		}
		return true, false, nil
	case planner.Gt:
		return cmp > 0, false, nil
	case planner.Gte:
		return cmp >= 0, false, nil
	default:
		return false, false, cacheerr.Wrap(cacheerr.Schema, "executor.checkRange", "unexpected range op %v", rf.Op)
	}
}

// tokenScanStream walks the primary keys recorded under one full-text
// token.
type tokenScanStream struct {
	cur     *kv.MultiMapCursor
	started bool
	done    bool
}

func (s *tokenScanStream) next(n int) ([][]byte, bool, error) {
	if s.done {
		return nil, false, nil
	}
	var out [][]byte
	for len(out) < n {
		var pk []byte
		var ok bool
		if !s.started {
			s.started = true
			pk, ok = s.cur.First()
		} else {
			pk, ok = s.cur.Next()
		}
		if !ok {
			s.done = true
			return out, false, nil
		}
		out = append(out, pk)
	}
	return out, true, nil
}
