// Package metrics exposes the item store's counters as a
// prometheus.Collector, grounded on the Describe/Collect shape used
// by the sockstats exporter: a small set of *prometheus.Desc built
// once at construction, with Collect pulling a fresh snapshot on each
// scrape rather than keeping its own shadow gauges.
package metrics

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/store"
)

const namespace = "corekv"

// Collector reports item-store occupancy, slab class occupancy, and
// per-status error counts.
type Collector struct {
	store *store.Store

	itemCurr    *prometheus.Desc
	itemInsert  *prometheus.Desc
	itemRemove  *prometheus.Desc
	keyValBytes *prometheus.Desc
	valBytes    *prometheus.Desc

	classCapacity *prometheus.Desc
	classPages    *prometheus.Desc

	errorsTotal *prometheus.Desc

	errCounts [32]uint64 // indexed by corekverr.Status; sized well past the taxonomy's current tail
}

// New builds a Collector reading from s. The returned Collector is
// itself a prometheus.Collector and must be registered with a
// prometheus.Registry to be scraped.
func New(s *store.Store) *Collector {
	return &Collector{
		store: s,
		itemCurr: prometheus.NewDesc(
			namespace+"_items_current", "Number of items currently stored.", nil, nil),
		itemInsert: prometheus.NewDesc(
			namespace+"_items_inserted_total", "Cumulative count of items linked into the store.", nil, nil),
		itemRemove: prometheus.NewDesc(
			namespace+"_items_removed_total", "Cumulative count of items unlinked from the store.", nil, nil),
		keyValBytes: prometheus.NewDesc(
			namespace+"_bytes_keyval", "Bytes of key+value data currently stored.", nil, nil),
		valBytes: prometheus.NewDesc(
			namespace+"_bytes_value", "Bytes of value data currently stored.", nil, nil),
		classCapacity: prometheus.NewDesc(
			namespace+"_slab_class_capacity_bytes", "Per-slot usable capacity of a slab class.", []string{"class"}, nil),
		classPages: prometheus.NewDesc(
			namespace+"_slab_class_pages", "Pages currently allocated to a slab class.", []string{"class"}, nil),
		errorsTotal: prometheus.NewDesc(
			namespace+"_errors_total", "Cumulative count of non-OK statuses returned by the protocol layer.", []string{"status"}, nil),
	}
}

// IncrError bumps the counter for st. Call sites are the dispatch
// layer's protocol handlers, once per status returned to a client;
// st.Logged() gates it the same way it gates a log line, so routine
// outcomes (Incomplete, NotFound, NotStored, Exists) never inflate the
// error count.
func (c *Collector) IncrError(st corekverr.Status) {
	if !st.Logged() {
		return
	}
	idx := int(st)
	if idx < 0 || idx >= len(c.errCounts) {
		return
	}
	atomic.AddUint64(&c.errCounts[idx], 1)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.itemCurr
	descs <- c.itemInsert
	descs <- c.itemRemove
	descs <- c.keyValBytes
	descs <- c.valBytes
	descs <- c.classCapacity
	descs <- c.classPages
	descs <- c.errorsTotal
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	stats := c.store.Stats()
	metrics <- prometheus.MustNewConstMetric(c.itemCurr, prometheus.GaugeValue, float64(stats.ItemCurr))
	metrics <- prometheus.MustNewConstMetric(c.itemInsert, prometheus.CounterValue, float64(stats.ItemInsert))
	metrics <- prometheus.MustNewConstMetric(c.itemRemove, prometheus.CounterValue, float64(stats.ItemRemove))
	metrics <- prometheus.MustNewConstMetric(c.keyValBytes, prometheus.GaugeValue, float64(stats.KeyValBytes))
	metrics <- prometheus.MustNewConstMetric(c.valBytes, prometheus.GaugeValue, float64(stats.ValBytes))

	for _, class := range c.store.Classes() {
		label := classLabel(class.ID)
		metrics <- prometheus.MustNewConstMetric(c.classCapacity, prometheus.GaugeValue, float64(class.DataCapacity), label)
		metrics <- prometheus.MustNewConstMetric(c.classPages, prometheus.GaugeValue, float64(class.PageCount()), label)
	}

	for st := corekverr.Status(0); int(st) < len(c.errCounts); st++ {
		n := atomic.LoadUint64(&c.errCounts[st])
		if n == 0 {
			continue
		}
		metrics <- prometheus.MustNewConstMetric(c.errorsTotal, prometheus.CounterValue, float64(n), st.String())
	}
}

func classLabel(id uint8) string {
	return strconv.Itoa(int(id))
}
