package applyloop

import (
	"context"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/indexworker"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/logreader"
	"github.com/cuemby/cachedb/pkg/mainenv"
	"github.com/cuemby/cachedb/pkg/metrics"
)

// Loop reads operations from Reader, applies them to Main, and submits
// each one to every Worker so every registered index stays current.
type Loop struct {
	CacheName string
	Main      *mainenv.Env
	Schema    cachetypes.Schema
	Reader    *logreader.Reader
	Workers   map[string]*indexworker.Worker // keyed by index id

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Loop. Workers must already be started (Worker.Start)
// before Start is called; Loop only ever calls Submit on them.
func New(cacheName string, main *mainenv.Env, schema cachetypes.Schema, reader *logreader.Reader, workers map[string]*indexworker.Worker) *Loop {
	return &Loop{
		CacheName: cacheName,
		Main:      main,
		Schema:    schema,
		Reader:    reader,
		Workers:   workers,
		done:      make(chan struct{}),
	}
}

// Start launches the apply loop's run goroutine.
func (l *Loop) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx)
}

// Stop cancels the blocking read in progress and waits for run to exit.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	<-l.done
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		op, offset, err := l.Reader.Next(ctx)
		if err != nil {
			return
		}
		if applyErr := l.applyOne(op, uint64(offset)); applyErr != nil {
			continue
		}
	}
}

// applyOne commits op to Main at offset and fans it out to every
// index worker. The commit and the fan-out happen outside a shared
// transaction: an index worker batches and applies independently, so a
// worker that hasn't yet caught up simply reports lag, it never blocks
// the main environment's own commit. A commit that fails with a Storage
// error is retried, up to maxApplyAttempts attempts in all.
func (l *Loop) applyOne(op cachetypes.Operation, offset uint64) error {
	const maxApplyAttempts = 3
	timer := metrics.NewTimer()
	apply := func(txn kv.Txn) error {
		if err := l.Main.Apply(txn, l.Schema, op, offset); err != nil {
			return err
		}
		state, err := l.Main.GetCommitState(txn)
		if err != nil {
			return err
		}
		state.OffsetApplied = offset
		return l.Main.PutCommitState(txn, state)
	}
	var err error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if err = l.Main.Update(apply); err == nil || !cacheerr.Is(err, cacheerr.Storage) {
			break
		}
	}
	timer.ObserveDuration(metrics.ApplyDuration)
	if err != nil {
		return err
	}
	metrics.OperationsAppliedTotal.WithLabelValues(opKindLabel(op.Kind)).Inc()

	job := indexworker.Job{LogOffset: offset, Op: op}
	for _, w := range l.Workers {
		_ = w.Submit(job)
	}
	return nil
}

func opKindLabel(k cachetypes.OpKind) string {
	switch k {
	case cachetypes.OpInsert:
		return "insert"
	case cachetypes.OpDelete:
		return "delete"
	case cachetypes.OpUpdate:
		return "update"
	case cachetypes.OpBatchInsert:
		return "batch_insert"
	default:
		return "unknown"
	}
}
