package cli

import (
	"bytes"
	"encoding/json"

	"github.com/natefinch/atomic"

	"github.com/corekv/corekv/internal/corectx"
)

// statsSnapshot is the JSON shape written to the dump_stats path: the
// store-wide counters plus a per-class breakdown, enough to diagnose
// occupancy and eviction pressure without scraping Prometheus.
type statsSnapshot struct {
	Items       int64           `json:"items"`
	ItemsTotal  uint64          `json:"items_total"`
	ItemsRemove uint64          `json:"items_removed_total"`
	KeyValBytes int64           `json:"keyval_bytes"`
	ValBytes    int64           `json:"value_bytes"`
	Classes     []classSnapshot `json:"classes"`
}

type classSnapshot struct {
	ID       uint8 `json:"id"`
	Capacity int   `json:"capacity_bytes"`
	Pages    int   `json:"pages"`
}

// dumpStats writes a point-in-time snapshot of ctx's store to path.
// It writes to a temp file and renames over path, via
// github.com/natefinch/atomic, so a crash mid-write never leaves a
// reader with a torn, half-written JSON document.
func dumpStats(path string, ctx *corectx.CoreContext) error {
	stats := ctx.Store.Stats()
	snap := statsSnapshot{
		Items:       stats.ItemCurr,
		ItemsTotal:  stats.ItemInsert,
		ItemsRemove: stats.ItemRemove,
		KeyValBytes: stats.KeyValBytes,
		ValBytes:    stats.ValBytes,
	}
	for _, class := range ctx.Store.Classes() {
		snap.Classes = append(snap.Classes, classSnapshot{
			ID:       class.ID,
			Capacity: int(class.DataCapacity),
			Pages:    class.PageCount(),
		})
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(body))
}
