package metrics

import (
	"time"

	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/indexworker"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/mainenv"
	"github.com/cuemby/cachedb/pkg/manager"
)

// CacheSource is one already-open cache version the Collector polls for
// record count and log-offset gauges. The caller retains ownership of
// Version — the Collector never closes it.
type CacheSource struct {
	Name    string
	Version *manager.Version
}

// IndexSource is one running index worker the Collector polls for
// queue depth and advance-marker lag. Cache is the owning cache's main
// environment, used to compute how far the index's advance marker
// trails the offset already applied there.
type IndexSource struct {
	IndexID string
	Worker  *indexworker.Worker
	Env     *indexenv.Env
	Cache   *manager.Version
}

// Collector periodically samples a fixed set of already-open caches and
// index workers and publishes their state as Prometheus gauges. It
// never opens or closes anything itself — Start/Stop only control the
// polling ticker.
type Collector struct {
	caches  []CacheSource
	indexes []IndexSource
	stopCh  chan struct{}
}

// NewCollector builds a Collector over the given caches and index
// workers, as they stood when the caller assembled the slices. Caches
// or workers added after construction are not picked up; build a new
// Collector (or extend this one before Start) if the tracked set
// changes.
func NewCollector(caches []CacheSource, indexes []IndexSource) *Collector {
	return &Collector{
		caches:  caches,
		indexes: indexes,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	CachesTotal.Set(float64(len(c.caches)))
	for _, src := range c.caches {
		c.collectCache(src)
	}
	for _, src := range c.indexes {
		c.collectIndex(src)
	}
}

func (c *Collector) collectCache(src CacheSource) {
	var count int
	var state mainenv.CommitState
	err := src.Version.Main.View(func(txn kv.Txn) error {
		s, err := src.Version.Main.GetCommitState(txn)
		if err != nil {
			return err
		}
		state = s
		return src.Version.Main.ScanPrimaryKeys(txn, func(_ []byte, m mainenv.RecordMetadata) error {
			if m.Kind == mainenv.Present {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return
	}
	RecordsTotal.WithLabelValues(src.Name).Set(float64(count))
	LogReaderOffset.WithLabelValues(src.Name).Set(float64(state.OffsetApplied))
}

func (c *Collector) collectIndex(src IndexSource) {
	IndexWorkerQueueDepth.WithLabelValues(src.IndexID).Set(float64(src.Worker.QueueDepth()))

	var marker uint64
	err := src.Env.View(func(txn kv.Txn) error {
		m, err := src.Env.AdvanceMarker(txn)
		if err != nil {
			return err
		}
		marker = m
		return nil
	})
	if err != nil {
		return
	}

	var lag uint64
	err = src.Cache.Main.View(func(txn kv.Txn) error {
		state, err := src.Cache.Main.GetCommitState(txn)
		if err != nil {
			return err
		}
		if state.OffsetApplied > marker {
			lag = state.OffsetApplied - marker
		}
		return nil
	})
	if err != nil {
		return
	}
	IndexLagOperations.WithLabelValues(src.IndexID).Set(float64(lag))
}
