package indexworker

import (
	"time"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/indexenv"
)

// Pool fans out committed operations to every index's Worker. Each
// index runs its own goroutine (it alone owns that index's write
// transactions), while a shared semaphore bounds how many of those
// workers may be mid-commit at once to the configured
// index_worker_count.
type Pool struct {
	sem     chan struct{}
	workers map[string]*Worker
}

// NewPool builds an empty pool bounded to maxConcurrentCommits
// simultaneous index commit sections.
func NewPool(maxConcurrentCommits int) *Pool {
	return &Pool{
		sem:     make(chan struct{}, maxConcurrentCommits),
		workers: make(map[string]*Worker),
	}
}

// Register starts a Worker for one index environment. capacity bounds
// how many unsent jobs may queue for this index before Submit blocks.
func (p *Pool) Register(env *indexenv.Env, schema cachetypes.Schema, capacity, batchSize int, flushInterval time.Duration) {
	w := NewWorker(env, schema, capacity, batchSize, flushInterval, p.sem)
	p.workers[env.IndexID] = w
	w.Start()
}

// Submit routes job to the named index's worker.
func (p *Pool) Submit(indexID string, job Job) error {
	w, ok := p.workers[indexID]
	if !ok {
		return cacheerr.Wrap(cacheerr.Schema, "indexworker.Submit", "no worker registered for index %s", indexID)
	}
	return w.Submit(job)
}

// Broadcast submits job to every registered index's worker, stopping at
// the first error. Used by the writer to fan one applied operation out
// to all secondary indexes in one call.
func (p *Pool) Broadcast(job Job) error {
	for _, w := range p.workers {
		if err := w.Submit(job); err != nil {
			return err
		}
	}
	return nil
}

// Stop shuts down every registered worker, waiting for each to drain
// and commit its remaining buffered jobs.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}
