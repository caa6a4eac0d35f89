// Package slab implements the fixed-size-class allocator that backs
// item storage: a pre-sized pool of pages, each carved into
// same-sized slots by a SlabClass, with per-class free queues and a
// choice of eviction policy once the pool is full. It is the Go
// translation of original_source's src/storage/slab/item.c's
// companion allocator (slab.c is not in the retrieved source, so the
// class-table and carving logic below follows item.c's call
// contract: slab_id, slab_get_item, slab_put_item) together with the
// growth-factor class table described for the system.
//
// Slab pages are plain byte arenas that never move once allocated;
// an Item's Data slice aliases its owning page's backing array for
// the item's entire lifetime, giving it the stable address the
// original's raw item pointers relied on without resorting to
// unsafe.Pointer arithmetic.
package slab

import (
	"math/rand"

	lru "github.com/hashicorp/golang-lru"

	"github.com/corekv/corekv/internal/corekverr"
)

// InvalidID denotes "no class can hold this many bytes."
const InvalidID uint8 = 255

// EvictPolicy selects what slab_get_item does once slab_maxbytes is
// exhausted and no class has a free slot.
type EvictPolicy int

const (
	EvictNone EvictPolicy = iota
	EvictRandom
	EvictLRU
)

// headerSize is the per-item fixed overhead counted toward a class's
// slot size, mirroring sizeof(struct item) in the original: magic,
// offset, id, the three alignment/link bits, klen, vlen, dataflag,
// create_at and expire_at. The bytes themselves are never stored in
// an item's Data slice — Go keeps that bookkeeping in the Item struct
// — but the class table must still budget for it so slot sizes match
// the reference growth table.
const headerSize = 32

// casSize is the additional per-item overhead when Config.UseCAS is
// set, mirroring the 8-byte CAS token original_source reserves
// conditionally.
const casSize = 8

// Config configures a SlabAllocator (external interfaces, configuration
// options recognized).
type Config struct {
	SlabSize      uint32
	ChunkSize     uint32
	GrowthFactor  float64
	MaxBytes      uint64
	UseCAS        bool
	Prealloc      bool
	EvictPolicy   EvictPolicy
	UseFreeQ      bool
	Profile       []uint32 // explicit class sizes; overrides GrowthFactor when non-empty
	ProfileLastID uint8

	// Seed seeds the allocator's PRNG for the random eviction policy,
	// so tests are reproducible (design note: eviction randomness must
	// be deterministic-seedable).
	Seed int64
}

// Item is one stored slot: header fields live directly on the struct
// (see the headerSize doc comment for why), and Data is the key+value
// payload region carved from a page.
type Item struct {
	ID    uint8
	Klen  uint8
	Vlen  uint32

	IsLinked   bool
	InFreeq    bool
	IsRaligned bool

	Dataflag  uint32
	CreateAt  int64
	ExpireAt  int64
	Cas       uint64

	// Data is the slot's key+value region, exactly class.DataCapacity
	// bytes, aliasing the owning page's backing array.
	Data []byte

	// HashNext chains items within a HashTable bucket.
	HashNext *Item

	// FreeNext chains items on a class free queue.
	FreeNext *Item

	page *page
}

// Key returns the key bytes: the first Klen bytes of Data when
// left-aligned, or the first Klen bytes of the data region when
// right-aligned (the key always precedes the value regardless of
// value alignment — only append/prepend re-slides the value).
func (it *Item) Key() []byte { return it.Data[:it.Klen] }

// Value returns the value bytes, honoring IsRaligned: a left-aligned
// value immediately follows the key; a right-aligned value occupies
// the tail of Data.
func (it *Item) Value() []byte {
	if it.IsRaligned {
		return it.Data[len(it.Data)-int(it.Vlen):]
	}
	return it.Data[it.Klen : it.Klen+uint8Safe(it.Vlen)]
}

func uint8Safe(v uint32) int { return int(v) }

type page struct {
	id       int
	class    *SlabClass
	data     []byte
	offset   uint32
	items    []*Item
}

// SlabClass is one size class: a fixed slot size and the pages being
// carved to serve it.
type SlabClass struct {
	ID            uint8
	DataCapacity  uint32 // usable key+value bytes per slot
	slotSize      uint32 // DataCapacity + headerSize + optional casSize, for class-table construction only
	freeHead      *Item
	pages         []*page
	carvingPage   *page
}

// PageCount reports how many pages are currently allocated to this
// class, for metrics reporting.
func (c *SlabClass) PageCount() int { return len(c.pages) }

// SlabAllocator partitions MaxBytes of memory across a class table
// built from Config, and serves GetItem/PutItem against it.
type SlabAllocator struct {
	cfg      Config
	classes  []*SlabClass
	allocated uint64
	rng      *rand.Rand
	lruByClass map[uint8]*lru.Cache
	nextPageID int
	evictor  ItemEvictor
}

// ItemEvictor is implemented by the item store so the allocator can
// unlink items whose page is being reclaimed for another class,
// without the slab package importing the store package.
type ItemEvictor interface {
	EvictItem(it *Item)
}

// New builds the class table from cfg and returns a ready allocator.
// evictor is consulted whenever a page must be reclaimed from one
// class to serve another.
func New(cfg Config, evictor ItemEvictor) *SlabAllocator {
	a := &SlabAllocator{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		lruByClass: make(map[uint8]*lru.Cache),
		evictor:    evictor,
	}
	a.buildClassTable()
	if cfg.Prealloc {
		for _, c := range a.classes {
			a.allocPage(c)
		}
	}
	return a
}

func (a *SlabAllocator) buildClassTable() {
	headerOverhead := uint32(headerSize)
	if a.cfg.UseCAS {
		headerOverhead += casSize
	}
	maxSlot := a.cfg.SlabSize

	var sizes []uint32
	if len(a.cfg.Profile) > 0 {
		sizes = a.cfg.Profile
	} else {
		size := a.cfg.ChunkSize
		for size < maxSlot {
			sizes = append(sizes, size)
			next := uint32(float64(size) * a.cfg.GrowthFactor)
			if next <= size {
				next = size + 1
			}
			size = next
		}
		sizes = append(sizes, maxSlot)
	}

	for i, slotSize := range sizes {
		if slotSize > maxSlot {
			slotSize = maxSlot
		}
		if slotSize <= headerOverhead {
			continue
		}
		c := &SlabClass{
			ID:           uint8(i),
			slotSize:     slotSize,
			DataCapacity: slotSize - headerOverhead,
		}
		a.classes = append(a.classes, c)
		a.lruByClass[c.ID], _ = lru.New(1 << 20)
	}
}

// SlabID returns the smallest class whose DataCapacity can hold
// dataBytes (klen+vlen), or InvalidID if none can.
func (a *SlabAllocator) SlabID(dataBytes uint32) uint8 {
	for _, c := range a.classes {
		if c.DataCapacity >= dataBytes {
			return c.ID
		}
	}
	return InvalidID
}

func (a *SlabAllocator) classByID(id uint8) *SlabClass {
	for _, c := range a.classes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// GetItem returns a fresh slot for class id, reusing a free-queue
// entry, carving from the current page, allocating a new page, or
// evicting per Config.EvictPolicy, in that priority order (slab_get_item).
func (a *SlabAllocator) GetItem(id uint8) (*Item, corekverr.Status) {
	c := a.classByID(id)
	if c == nil {
		return nil, corekverr.Oversized
	}

	if a.cfg.UseFreeQ && c.freeHead != nil {
		it := c.freeHead
		c.freeHead = it.FreeNext
		it.FreeNext = nil
		it.InFreeq = false
		a.touch(c.ID, it.page)
		return it, corekverr.OK
	}

	if c.carvingPage != nil && c.carvingPage.offset+c.DataCapacity <= uint32(len(c.carvingPage.data)) {
		return a.carve(c, c.carvingPage), corekverr.OK
	}

	if a.allocated+uint64(a.cfg.SlabSize) <= a.cfg.MaxBytes {
		p := a.allocPage(c)
		return a.carve(c, p), corekverr.OK
	}

	p, status := a.evict(c)
	if status != corekverr.OK {
		return nil, status
	}
	return a.carve(c, p), corekverr.OK
}

// PutItem returns it to its class's free queue (slab_put_item). Pages
// are never returned to the OS.
func (a *SlabAllocator) PutItem(it *Item) {
	it.InFreeq = true
	it.IsLinked = false
	c := a.classByID(it.ID)
	if c == nil || !a.cfg.UseFreeQ {
		return
	}
	it.FreeNext = c.freeHead
	c.freeHead = it
}

func (a *SlabAllocator) allocPage(c *SlabClass) *page {
	p := &page{
		id:    a.nextPageID,
		class: c,
		data:  make([]byte, a.cfg.SlabSize),
	}
	a.nextPageID++
	c.pages = append(c.pages, p)
	c.carvingPage = p
	a.allocated += uint64(a.cfg.SlabSize)
	return p
}

func (a *SlabAllocator) carve(c *SlabClass, p *page) *Item {
	it := &Item{
		ID:   c.ID,
		Data: p.data[p.offset : p.offset+c.DataCapacity],
		page: p,
	}
	p.items = append(p.items, it)
	p.offset += c.DataCapacity
	a.touch(c.ID, p)
	return it
}

func (a *SlabAllocator) touch(classID uint8, p *page) {
	if a.cfg.EvictPolicy != EvictLRU || p == nil {
		return
	}
	if cache, ok := a.lruByClass[classID]; ok {
		cache.Add(p.id, p)
	}
}

// evict reclaims a full page for class c per Config.EvictPolicy,
// unlinking every item it carried via the configured ItemEvictor.
func (a *SlabAllocator) evict(c *SlabClass) (*page, corekverr.Status) {
	switch a.cfg.EvictPolicy {
	case EvictNone:
		return nil, corekverr.NoMem

	case EvictRandom:
		candidates := a.nonEmptyClasses()
		if len(candidates) == 0 {
			return nil, corekverr.NoMem
		}
		victimClass := candidates[a.rng.Intn(len(candidates))]
		victimPage := victimClass.pages[a.rng.Intn(len(victimClass.pages))]
		a.reclaim(victimClass, victimPage, c)
		return victimPage, corekverr.OK

	case EvictLRU:
		cache, ok := a.lruByClass[c.ID]
		if !ok || cache.Len() == 0 || len(c.pages) == 0 {
			return nil, corekverr.NoMem
		}
		_, lruPage, ok := cache.RemoveOldest()
		if !ok {
			return nil, corekverr.NoMem
		}
		victimPage := lruPage.(*page)
		a.reclaim(c, victimPage, c)
		return victimPage, corekverr.OK
	}
	return nil, corekverr.NoMem
}

func (a *SlabAllocator) nonEmptyClasses() []*SlabClass {
	var out []*SlabClass
	for _, c := range a.classes {
		if len(c.pages) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// reclaim evicts every linked item on victimPage and reassigns the
// page to newClass, ready to be carved from offset 0.
func (a *SlabAllocator) reclaim(oldClass *SlabClass, victimPage *page, newClass *SlabClass) {
	for _, it := range victimPage.items {
		if it.IsLinked && a.evictor != nil {
			a.evictor.EvictItem(it)
		}
	}
	removePage(oldClass, victimPage)
	victimPage.items = nil
	victimPage.offset = 0
	victimPage.class = newClass
	newClass.pages = append(newClass.pages, victimPage)
	newClass.carvingPage = victimPage
}

func removePage(c *SlabClass, p *page) {
	for i, pg := range c.pages {
		if pg == p {
			c.pages = append(c.pages[:i], c.pages[i+1:]...)
			return
		}
	}
}

// Classes exposes the built class table, read-only, for metrics and
// tests.
func (a *SlabAllocator) Classes() []*SlabClass { return a.classes }
