package corectx

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/internal/slab"
	"github.com/corekv/corekv/internal/store"
)

func TestNewWiresStoreAndMetrics(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx := New(store.Config{
		Slab: slab.Config{
			SlabSize:     1024,
			ChunkSize:    64,
			GrowthFactor: 1.25,
			MaxBytes:     1024 * 8,
			UseFreeQ:     true,
			EvictPolicy:  slab.EvictNone,
		},
		HashPower: 4,
	}, log)

	require.NotNil(t, ctx.Store)
	require.NotNil(t, ctx.Metrics)
	require.Same(t, log, ctx.Log)

	_, st := ctx.Store.Insert([]byte("k"), []byte("v"), 0, 0)
	require.True(t, st.Ok())
}
