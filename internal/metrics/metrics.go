// Package metrics provides Prometheus metrics for the storage engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics exposed by the storage engine. A nil
// *Metrics is valid and every method on it is a no-op, so callers that don't
// care about metrics (most tests) can pass nil without guarding every call
// site.
type Metrics struct {
	// Buffer pool
	BufferFetchTotal     *prometheus.CounterVec // result=hit|miss
	BufferEvictionsTotal prometheus.Counter
	BufferPinnedFrames   prometheus.Gauge
	BufferFreeFrames     prometheus.Gauge

	// Disk manager
	DiskPagesAllocatedTotal   prometheus.Counter
	DiskPagesDeallocatedTotal prometheus.Counter
	DiskExtentsTotal          prometheus.Gauge

	// B+-tree
	BTreeSplitsTotal          prometheus.Counter
	BTreeMergesTotal          prometheus.Counter
	BTreeRedistributionsTotal prometheus.Counter

	// Catalog
	CatalogTablesTotal  prometheus.Gauge
	CatalogIndexesTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics against the
// default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates and registers metrics against a caller-supplied
// registerer, letting tests use their own registry instead of the process
// global one.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{}

	m.BufferFetchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minisql_buffer_fetch_total",
			Help: "Total number of buffer pool FetchPage calls by result.",
		},
		[]string{"result"},
	)
	m.BufferEvictionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "minisql_buffer_evictions_total",
		Help: "Total number of frame evictions performed by the buffer pool.",
	})
	m.BufferPinnedFrames = factory.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_buffer_pinned_frames",
		Help: "Current number of pinned frames in the buffer pool.",
	})
	m.BufferFreeFrames = factory.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_buffer_free_frames",
		Help: "Current number of free frames in the buffer pool.",
	})

	m.DiskPagesAllocatedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "minisql_disk_pages_allocated_total",
		Help: "Total number of logical pages allocated.",
	})
	m.DiskPagesDeallocatedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "minisql_disk_pages_deallocated_total",
		Help: "Total number of logical pages deallocated.",
	})
	m.DiskExtentsTotal = factory.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_disk_extents_total",
		Help: "Current number of extents in the database file.",
	})

	m.BTreeSplitsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "minisql_btree_splits_total",
		Help: "Total number of B+-tree node splits.",
	})
	m.BTreeMergesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "minisql_btree_merges_total",
		Help: "Total number of B+-tree node coalesces.",
	})
	m.BTreeRedistributionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "minisql_btree_redistributions_total",
		Help: "Total number of B+-tree sibling redistributions.",
	})

	m.CatalogTablesTotal = factory.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_catalog_tables_total",
		Help: "Current number of tables registered in the catalog.",
	})
	m.CatalogIndexesTotal = factory.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_catalog_indexes_total",
		Help: "Current number of indexes registered in the catalog.",
	})

	return m
}

func (m *Metrics) RecordBufferFetch(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.BufferFetchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordEviction() {
	if m == nil {
		return
	}
	m.BufferEvictionsTotal.Inc()
}

func (m *Metrics) SetFrameCounts(pinned, free int) {
	if m == nil {
		return
	}
	m.BufferPinnedFrames.Set(float64(pinned))
	m.BufferFreeFrames.Set(float64(free))
}

func (m *Metrics) RecordPageAllocated() {
	if m == nil {
		return
	}
	m.DiskPagesAllocatedTotal.Inc()
}

func (m *Metrics) RecordPageDeallocated() {
	if m == nil {
		return
	}
	m.DiskPagesDeallocatedTotal.Inc()
}

func (m *Metrics) SetExtentCount(n int) {
	if m == nil {
		return
	}
	m.DiskExtentsTotal.Set(float64(n))
}

func (m *Metrics) RecordSplit() {
	if m == nil {
		return
	}
	m.BTreeSplitsTotal.Inc()
}

func (m *Metrics) RecordMerge() {
	if m == nil {
		return
	}
	m.BTreeMergesTotal.Inc()
}

func (m *Metrics) RecordRedistribution() {
	if m == nil {
		return
	}
	m.BTreeRedistributionsTotal.Inc()
}

func (m *Metrics) SetCatalogCounts(tables, indexes int) {
	if m == nil {
		return
	}
	m.CatalogTablesTotal.Set(float64(tables))
	m.CatalogIndexesTotal.Set(float64(indexes))
}
