package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/slab"
	"github.com/corekv/corekv/internal/store"
)

func testStore() *store.Store {
	return store.New(store.Config{
		Slab: slab.Config{
			SlabSize:     1024,
			ChunkSize:    64,
			GrowthFactor: 1.25,
			MaxBytes:     1024 * 8,
			UseFreeQ:     true,
			EvictPolicy:  slab.EvictNone,
		},
		HashPower: 4,
	})
}

func collect(t *testing.T, c *Collector) []prometheus.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	var out []prometheus.Metric
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func TestCollectReportsItemCounts(t *testing.T) {
	s := testStore()
	s.Insert([]byte("k"), []byte("v"), 0, 0)
	c := New(s)

	metrics := collect(t, c)
	require.NotEmpty(t, metrics)
}

func TestDescribeEmitsAllDescriptors(t *testing.T) {
	c := New(testStore())
	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)

	var n int
	for range descs {
		n++
	}
	require.Equal(t, 8, n)
}

func TestIncrErrorSkipsIncomplete(t *testing.T) {
	c := New(testStore())
	c.IncrError(corekverr.Incomplete)
	c.IncrError(corekverr.Invalid)

	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)

	var sawInvalid, sawIncomplete bool
	for m := range ch {
		var dtoM dto.Metric
		require.NoError(t, m.Write(&dtoM))
		for _, lbl := range dtoM.GetLabel() {
			if lbl.GetName() == "status" && lbl.GetValue() == "INVALID" {
				sawInvalid = true
			}
			if lbl.GetName() == "status" && lbl.GetValue() == corekverr.Incomplete.String() {
				sawIncomplete = true
			}
		}
	}
	require.True(t, sawInvalid)
	require.False(t, sawIncomplete)
}
