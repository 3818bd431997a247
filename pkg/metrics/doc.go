/*
Package metrics provides Prometheus metrics collection and exposition
for cachedb.

The metrics package defines and registers cachedb's metrics using the
Prometheus client library: cache inventory, operation-log offsets,
apply and query latency, index-worker queue depth and lag. Metrics are
exposed via an HTTP handler for scraping by a Prometheus server.

# Metric Categories

Cache inventory:
  - cachedb_caches_total: number of named caches known to this process
  - cachedb_records_total{cache_name}: live record count per cache

Log reader:
  - cachedb_logreader_offset_bytes{cache_name}: bytes consumed from the
    operation log
  - cachedb_logreader_retries_total{cache_name}: short-read retries
    while tailing

Writer/apply:
  - cachedb_apply_duration_seconds: time to apply one operation
  - cachedb_operations_applied_total{kind}: applied operations by kind

Index worker:
  - cachedb_indexworker_queue_depth{index_id}: jobs queued for the
    worker, one per operation
  - cachedb_index_lag_operations{index_id}: log offsets applied to the
    main environment but not yet reflected in an index's advance marker
  - cachedb_index_apply_duration_seconds{index_id}: batch apply time

Query/executor:
  - cachedb_queries_total{outcome}: queries by outcome
  - cachedb_query_duration_seconds{plan_kind}: execution time by plan
    kind (index scan vs. seq scan)
  - cachedb_intersection_result_size: k-way bitmap intersection result
    size

Manager:
  - cachedb_version_swaps_total{cache_name}: alias swaps to a new
    cache version

# Collector

Collector polls a fixed set of already-open CacheSource and IndexSource
values on a 15-second ticker and republishes their state as gauges.
It never opens, closes, or locks anything — the caller assembles the
sources from whatever caches and index workers its own process already
has open.

# Health

HealthChecker tracks named component health (e.g. "logreader",
"indexworker", "manager") and serves /health, /ready, and /live HTTP
handlers. GetReadiness treats logreader, indexworker, and manager as
critical: readiness reports not_ready unless all three are registered
and currently healthy.

# Usage

All metrics self-register at package init; nothing needs to call an
Init function before they can be observed.

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())

	timer := metrics.NewTimer()
	records, err := ex.Execute(ctx, plan, query, now)
	timer.ObserveDurationVec(metrics.QueryDuration, planKindLabel(plan))
*/
package metrics
