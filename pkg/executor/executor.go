package executor

import (
	"bytes"
	"context"
	"time"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/mainenv"
	"github.com/cuemby/cachedb/pkg/planner"
)

// Executor runs a chosen Plan against one cache version's main
// environment and its registered secondary index environments.
type Executor struct {
	Main      *mainenv.Env
	Indexes   map[string]*indexenv.Env // keyed by IndexScan.IndexID
	Schema    cachetypes.Schema
	ChunkSize int // intersection_chunk_size; defaults to 1024 if <= 0
}

func New(main *mainenv.Env, indexes map[string]*indexenv.Env, schema cachetypes.Schema, chunkSize int) *Executor {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &Executor{Main: main, Indexes: indexes, Schema: schema, ChunkSize: chunkSize}
}

type matchedRecord struct {
	pk  []byte
	rec cachetypes.Record
}

// Execute runs plan, opening one read transaction on the main
// environment and one on every secondary environment plan.Scans
// touches, then applies ordering, skip, and limit to the survivors.
func (ex *Executor) Execute(ctx context.Context, plan planner.Plan, query planner.Query, now time.Time) ([]cachetypes.Record, error) {
	indexIDs := make([]string, 0, len(plan.Scans))
	for _, s := range plan.Scans {
		indexIDs = append(indexIDs, s.IndexID)
	}

	var rows []matchedRecord
	err := ex.withTxns(indexIDs, func(mtxn kv.Txn, idxTxns map[string]kv.Txn) error {
		if plan.SeqScan {
			r, err := ex.execSeqScan(ctx, mtxn, plan, now)
			rows = r
			return err
		}
		r, err := ex.execIndexPlan(ctx, mtxn, idxTxns, plan, query, now)
		rows = r
		return err
	})
	if err != nil {
		return nil, err
	}

	if !plan.PreSorted && len(query.OrderBy) > 0 {
		sortRecords(rows, query.OrderBy)
	}

	rows = applySkip(rows, query.Skip)
	if query.Limit != nil && uint64(len(rows)) > *query.Limit {
		rows = rows[:*query.Limit]
	}

	out := make([]cachetypes.Record, len(rows))
	for i, r := range rows {
		out[i] = r.rec
	}
	return out, nil
}

// Count reports how many rows plan's residual filter matches, applying
// the same TTL-expiry and filter evaluation as Execute but skipping row
// materialization, ordering, skip, and limit — a row counts once it
// matches, regardless of Query.Limit/Skip. Callers that need an
// access-filtered count (accessfilter.Reader.Count) build plan from a
// Query with the access filter already ANDed in, so the filtering here
// is identical to the one Execute would have applied to the same Query.
func (ex *Executor) Count(ctx context.Context, plan planner.Plan, query planner.Query, now time.Time) (uint64, error) {
	indexIDs := make([]string, 0, len(plan.Scans))
	for _, s := range plan.Scans {
		indexIDs = append(indexIDs, s.IndexID)
	}

	var n uint64
	err := ex.withTxns(indexIDs, func(mtxn kv.Txn, idxTxns map[string]kv.Txn) error {
		if plan.SeqScan {
			return ex.countSeqScan(ctx, mtxn, plan, now, &n)
		}
		return ex.countIndexPlan(ctx, mtxn, idxTxns, plan, now, &n)
	})
	return n, err
}

func (ex *Executor) countSeqScan(ctx context.Context, mtxn kv.Txn, plan planner.Plan, now time.Time, n *uint64) error {
	return ex.Main.ScanPrimaryKeys(mtxn, func(pk []byte, m mainenv.RecordMetadata) error {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if m.Kind != mainenv.Present {
			return nil
		}
		rec, ok, err := ex.Main.Get(mtxn, ex.Schema, pk)
		if err != nil || !ok {
			return err
		}
		if rec.Expired(now) {
			return nil
		}
		match, err := evalExpr(plan.Residual, rec)
		if err != nil || !match {
			return err
		}
		*n++
		return nil
	})
}

func (ex *Executor) countIndexPlan(ctx context.Context, mtxn kv.Txn, idxTxns map[string]kv.Txn, plan planner.Plan, now time.Time, n *uint64) error {
	var streams []pkStream
	for _, scan := range plan.Scans {
		ss, err := newScanStreams(idxTxns[scan.IndexID], ex.Indexes[scan.IndexID], scan)
		if err != nil {
			return err
		}
		streams = append(streams, ss...)
	}

	dict := newDictionary()
	return intersect(streams, ex.ChunkSize, dict, func(pk []byte) error {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		rec, ok, err := ex.Main.Get(mtxn, ex.Schema, pk)
		if err != nil || !ok {
			return err
		}
		if rec.Expired(now) {
			return nil
		}
		match, err := evalExpr(plan.Residual, rec)
		if err != nil || !match {
			return err
		}
		*n++
		return nil
	})
}

// withTxns opens the main environment's read transaction and, nested
// inside it, one read transaction per distinct index id, so a query
// joining several environments sees one consistent snapshot across all
// of them for its duration.
func (ex *Executor) withTxns(indexIDs []string, fn func(mainTxn kv.Txn, idxTxns map[string]kv.Txn) error) error {
	return ex.Main.View(func(mtxn kv.Txn) error {
		return ex.openIndexTxns(indexIDs, 0, mtxn, make(map[string]kv.Txn, len(indexIDs)), fn)
	})
}

func (ex *Executor) openIndexTxns(ids []string, i int, mtxn kv.Txn, acc map[string]kv.Txn, fn func(kv.Txn, map[string]kv.Txn) error) error {
	if i == len(ids) {
		return fn(mtxn, acc)
	}
	if _, already := acc[ids[i]]; already {
		return ex.openIndexTxns(ids, i+1, mtxn, acc, fn)
	}
	env := ex.Indexes[ids[i]]
	return env.View(func(txn kv.Txn) error {
		acc[ids[i]] = txn
		return ex.openIndexTxns(ids, i+1, mtxn, acc, fn)
	})
}

func (ex *Executor) execSeqScan(ctx context.Context, mtxn kv.Txn, plan planner.Plan, now time.Time) ([]matchedRecord, error) {
	var rows []matchedRecord
	err := ex.Main.ScanPrimaryKeys(mtxn, func(pk []byte, m mainenv.RecordMetadata) error {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if m.Kind != mainenv.Present {
			return nil
		}
		rec, ok, err := ex.Main.Get(mtxn, ex.Schema, pk)
		if err != nil || !ok {
			return err
		}
		if rec.Expired(now) {
			return nil
		}
		match, err := evalExpr(plan.Residual, rec)
		if err != nil || !match {
			return err
		}
		rows = append(rows, matchedRecord{pk: append([]byte(nil), pk...), rec: rec})
		return nil
	})
	return rows, err
}

func (ex *Executor) execIndexPlan(ctx context.Context, mtxn kv.Txn, idxTxns map[string]kv.Txn, plan planner.Plan, query planner.Query, now time.Time) ([]matchedRecord, error) {
	var streams []pkStream
	for _, scan := range plan.Scans {
		ss, err := newScanStreams(idxTxns[scan.IndexID], ex.Indexes[scan.IndexID], scan)
		if err != nil {
			return nil, err
		}
		streams = append(streams, ss...)
	}

	matched := make(map[string]matchedRecord)
	dict := newDictionary()
	err := intersect(streams, ex.ChunkSize, dict, func(pk []byte) error {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		rec, ok, err := ex.Main.Get(mtxn, ex.Schema, pk)
		if err != nil || !ok {
			return err
		}
		if rec.Expired(now) {
			return nil
		}
		match, err := evalExpr(plan.Residual, rec)
		if err != nil || !match {
			return err
		}
		matched[string(pk)] = matchedRecord{pk: append([]byte(nil), pk...), rec: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !plan.PreSorted {
		rows := make([]matchedRecord, 0, len(matched))
		for _, m := range matched {
			rows = append(rows, m)
		}
		return rows, nil
	}

	// plan.PreSorted covers both "the scan's natural order satisfies an
	// explicit ORDER BY" and "there is no ORDER BY, so the scan's
	// natural order is as good as any" — in both cases the single
	// driving SortedInverted scan's order must be preserved rather than
	// handed back in map iteration order, which Go randomizes.
	return ex.walkInDriverOrder(ctx, idxTxns, plan, matched)
}

// walkInDriverOrder re-walks the one SortedInverted scan responsible
// for Plan.PreSorted, in its natural order, keeping only primary keys
// already confirmed present in matched. This is the fetch order the
// planner promised when it marked the plan pre-sorted; the round-based
// bitmap intersection above does not itself preserve any scan's order
// (ids are assigned in whatever order a round first observes a key), so
// a plan that needs order and skips the in-memory sort step has to
// source it from a second, ordered pass instead.
func (ex *Executor) walkInDriverOrder(ctx context.Context, idxTxns map[string]kv.Txn, plan planner.Plan, matched map[string]matchedRecord) ([]matchedRecord, error) {
	var driver *planner.IndexScan
	for i := range plan.Scans {
		if plan.Scans[i].Def.Kind == cachetypes.SortedInverted {
			driver = &plan.Scans[i]
			break
		}
	}
	if driver == nil {
		rows := make([]matchedRecord, 0, len(matched))
		for _, m := range matched {
			rows = append(rows, m)
		}
		return rows, nil
	}

	streams, err := newScanStreams(idxTxns[driver.IndexID], ex.Indexes[driver.IndexID], *driver)
	if err != nil {
		return nil, err
	}
	stream := streams[0]

	rows := make([]matchedRecord, 0, len(matched))
	for {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		batch, more, err := stream.next(1024)
		if err != nil {
			return nil, err
		}
		for _, pk := range batch {
			if m, ok := matched[string(pk)]; ok {
				rows = append(rows, m)
			}
		}
		if !more {
			return rows, nil
		}
	}
}

// applySkip drops leading rows per Skip: Offset drops a fixed count,
// After drops every row up to and including the one matching its
// primary key (a linear scan over the already-small, already-filtered
// result set; if that key is absent — e.g. deleted since the caller's
// last page — rows are returned unchanged since no position can be
// determined).
func applySkip(rows []matchedRecord, skip planner.Skip) []matchedRecord {
	switch skip.Kind {
	case planner.SkipOffset:
		if skip.Offset >= uint64(len(rows)) {
			return nil
		}
		return rows[skip.Offset:]
	case planner.SkipAfter:
		for i, r := range rows {
			if bytes.Equal(r.pk, skip.After) {
				return rows[i+1:]
			}
		}
		return rows
	default:
		return rows
	}
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
