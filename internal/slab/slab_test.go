package slab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/internal/corekverr"
)

type nullEvictor struct{ evicted []*Item }

func (e *nullEvictor) EvictItem(it *Item) { e.evicted = append(e.evicted, it) }

func smallConfig() Config {
	return Config{
		SlabSize:     1024,
		ChunkSize:    64,
		GrowthFactor: 1.25,
		MaxBytes:     1024 * 4,
		UseFreeQ:     true,
		EvictPolicy:  EvictNone,
		Seed:         1,
	}
}

func TestClassTableCoversUpToSlabSize(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	classes := a.Classes()
	require.NotEmpty(t, classes)
	require.Equal(t, smallConfig().SlabSize-headerSize, classes[len(classes)-1].DataCapacity)
}

func TestSlabIDPicksSmallestFit(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	id := a.SlabID(10)
	c := a.classByID(id)
	require.GreaterOrEqual(t, c.DataCapacity, uint32(10))
	smaller := a.classByID(id - 1)
	if smaller != nil {
		require.Less(t, smaller.DataCapacity, uint32(10))
	}
}

func TestSlabIDOversizedReturnsInvalid(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	id := a.SlabID(1 << 20)
	require.Equal(t, InvalidID, id)
}

func TestGetItemCarvesFromNewPage(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	id := a.SlabID(10)
	it, st := a.GetItem(id)
	require.True(t, st.Ok())
	require.Equal(t, id, it.ID)
	require.GreaterOrEqual(t, len(it.Data), 10)
}

func TestPutItemReturnsToFreeQueueAndIsReused(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	id := a.SlabID(10)
	it1, st := a.GetItem(id)
	require.True(t, st.Ok())
	a.PutItem(it1)
	require.True(t, it1.InFreeq)

	it2, st := a.GetItem(id)
	require.True(t, st.Ok())
	require.Same(t, it1, it2, "a freed slot must be reused before carving a new one")
	require.False(t, it2.InFreeq)
}

func TestGetItemNoMemWhenBudgetExhaustedAndNoEviction(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxBytes = 1024 // exactly one page
	cfg.UseFreeQ = false
	a := New(cfg, &nullEvictor{})
	id := a.SlabID(10)

	var st corekverr.Status
	for i := 0; i < 1000; i++ {
		_, st = a.GetItem(id)
		if !st.Ok() {
			break
		}
	}
	require.Equal(t, corekverr.NoMem, st)
}

func TestGetItemEvictsWithRandomPolicy(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxBytes = 1024
	cfg.UseFreeQ = false
	cfg.EvictPolicy = EvictRandom
	evictor := &nullEvictor{}
	a := New(cfg, evictor)
	id := a.SlabID(10)

	for i := 0; i < 200; i++ {
		it, st := a.GetItem(id)
		require.True(t, st.Ok(), "iteration %d", i)
		it.IsLinked = true
	}
	require.NotEmpty(t, evictor.evicted, "eviction must have reclaimed at least one item")
}

func TestItemKeyValueLeftAligned(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	id := a.SlabID(10)
	it, st := a.GetItem(id)
	require.True(t, st.Ok())

	copy(it.Data, "abXYZ")
	it.Klen = 2
	it.Vlen = 3
	require.Equal(t, "ab", string(it.Key()))
	require.Equal(t, "XYZ", string(it.Value()))
}

func TestItemValueRightAligned(t *testing.T) {
	a := New(smallConfig(), &nullEvictor{})
	id := a.SlabID(10)
	it, st := a.GetItem(id)
	require.True(t, st.Ok())

	it.Klen = 2
	it.Vlen = 3
	it.IsRaligned = true
	copy(it.Data[len(it.Data)-3:], "XYZ")
	copy(it.Data[:2], "ab")
	require.Equal(t, "ab", string(it.Key()))
	require.Equal(t, "XYZ", string(it.Value()))
}
