package indexenv

import (
	"strings"
	"unicode"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/kv"
)

// Tokenize splits s into lowercased word tokens: a run of letters and
// digits is one token, any other rune is a separator. No stemming, no
// stop-word removal — the rule is deterministic so the same text always
// produces the same token set.
func Tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func uniqueTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(s) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// AddTokens tokenizes text and records (token, pk) for every distinct
// token it contains.
func (e *Env) AddTokens(txn kv.Txn, pk []byte, text string) error {
	if e.Def.Kind != cachetypes.FullText {
		return cacheerr.Wrap(cacheerr.Schema, "indexenv.AddTokens", "index %s is not FullText", e.IndexID)
	}
	for _, tok := range uniqueTokens(text) {
		if err := e.tokens.Put(txn, []byte(tok), pk); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTokens reverses AddTokens for the same text, used when a record
// is deleted or updated and the prior indexed text must be un-indexed
// before the new text (if any) is added.
func (e *Env) RemoveTokens(txn kv.Txn, pk []byte, text string) error {
	if e.Def.Kind != cachetypes.FullText {
		return cacheerr.Wrap(cacheerr.Schema, "indexenv.RemoveTokens", "index %s is not FullText", e.IndexID)
	}
	for _, tok := range uniqueTokens(text) {
		if err := e.tokens.Delete(txn, []byte(tok), pk); err != nil {
			return err
		}
	}
	return nil
}

// ForEachPK visits every primary key recorded under token, in sorted
// order. The executor's conjunctive query intersects these per-token
// sets across the search phrase.
func (e *Env) ForEachPK(txn kv.Txn, token string, fn func(pk []byte) error) error {
	if e.Def.Kind != cachetypes.FullText {
		return cacheerr.Wrap(cacheerr.Schema, "indexenv.ForEachPK", "index %s is not FullText", e.IndexID)
	}
	return e.tokens.ForEach(txn, []byte(token), fn)
}

// TokenCursor returns a pull-based iterator over the primary keys
// recorded under token, for the executor's chunked intersection rounds.
func (e *Env) TokenCursor(txn kv.Txn, token string) (*kv.MultiMapCursor, error) {
	if e.Def.Kind != cachetypes.FullText {
		return nil, cacheerr.Wrap(cacheerr.Schema, "indexenv.TokenCursor", "index %s is not FullText", e.IndexID)
	}
	return e.tokens.Cursor(txn, []byte(token))
}
