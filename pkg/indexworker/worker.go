package indexworker

import (
	"time"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/kv"
)

// Worker owns the write transactions for one index environment. It
// buffers incoming jobs and commits a batch once BatchSize jobs have
// accumulated or on each tick of a fixed FlushInterval ticker,
// whichever comes first, then publishes the index's advance_marker.
type Worker struct {
	Env    *indexenv.Env
	Schema cachetypes.Schema

	jobs          chan Job
	batchSize     int
	flushInterval time.Duration
	sem           chan struct{} // bounds concurrent commit sections pool-wide

	stopCh chan struct{}
	done   chan struct{}
}

// NewWorker builds a Worker with the given inbound queue capacity,
// commit batch size, and flush interval. sem is the pool-wide semaphore
// bounding how many index workers may hold an open commit transaction
// at once (the "bounded" in bounded worker pool); pass a nil channel
// for no bound.
func NewWorker(env *indexenv.Env, schema cachetypes.Schema, capacity, batchSize int, flushInterval time.Duration, sem chan struct{}) *Worker {
	return &Worker{
		Env:           env,
		Schema:        schema,
		jobs:          make(chan Job, capacity),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		sem:           sem,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the worker's run loop in its own goroutine.
func (w *Worker) Start() { go w.run() }

// Submit enqueues job, blocking until there is room or the worker is
// stopping. Returns cacheerr.Cancelled if the worker has been told to
// shut down.
func (w *Worker) Submit(job Job) error {
	select {
	case w.jobs <- job:
		return nil
	case <-w.stopCh:
		return cacheerr.Wrap(cacheerr.Cancelled, "indexworker.Submit", "worker for index %s is stopping", w.Env.IndexID)
	}
}

// Stop signals shutdown, drains and commits whatever is already
// buffered or queued, and waits for the run loop to exit.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.done
}

// QueueDepth reports how many jobs are currently sitting in the
// inbound channel, for metrics collection.
func (w *Worker) QueueDepth() int { return len(w.jobs) }

func (w *Worker) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	var batch []Job
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if w.sem != nil {
			w.sem <- struct{}{}
			defer func() { <-w.sem }()
		}
		_ = w.commit(batch)
		batch = batch[:0]
	}

	for {
		select {
		case job := <-w.jobs:
			batch = append(batch, job)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.stopCh:
			w.drain(&batch)
			flush()
			return
		}
	}
}

// drain empties whatever is still sitting in the channel without
// blocking, so a shutdown commits every job already accepted by Submit.
func (w *Worker) drain(batch *[]Job) {
	for {
		select {
		case job := <-w.jobs:
			*batch = append(*batch, job)
		default:
			return
		}
	}
}

// commit applies every job in batch under one write transaction and
// advances the index's marker to the highest log_offset seen.
func (w *Worker) commit(batch []Job) error {
	var maxOffset uint64
	err := w.Env.Update(func(txn kv.Txn) error {
		for _, job := range batch {
			if err := applyJob(txn, w.Env, w.Schema, job); err != nil {
				return err
			}
			if job.LogOffset > maxOffset {
				maxOffset = job.LogOffset
			}
		}
		return w.Env.SetAdvanceMarker(txn, maxOffset)
	})
	return err
}
