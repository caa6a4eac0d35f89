// Package corectx defines CoreContext, the single explicit struct
// that replaces the process-wide globals item.c relies on (flush_at,
// the slab class table, the hash table, the CAS counter, the metric
// structs): constructed once at startup and passed down to every
// operation instead of being reached for as hidden singletons.
package corectx

import (
	"github.com/sirupsen/logrus"

	"github.com/corekv/corekv/internal/metrics"
	"github.com/corekv/corekv/internal/store"
)

// CoreContext bundles everything a connection's dispatch loop needs:
// the item store, the metrics collector, and a logger already tagged
// for this process.
type CoreContext struct {
	Store   *store.Store
	Metrics *metrics.Collector
	Log     *logrus.Logger
}

// New wires a Store to a fresh metrics Collector and the given
// logger.
func New(cfg store.Config, log *logrus.Logger) *CoreContext {
	s := store.New(cfg)
	m := metrics.New(s)
	return &CoreContext{Store: s, Metrics: m, Log: log}
}
