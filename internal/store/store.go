// Package store implements ItemStore: the hash-indexed layer on top
// of slab that gives get/insert/update/delete/annex/flush their
// memcached semantics — lazy expiration, CAS tokens, and
// append/prepend re-alignment. It is a close port of
// original_source's src/storage/slab/item.c, translated from
// out-parameter/raw-pointer C into returned (*slab.Item, Status)
// pairs.
package store

import (
	"sync/atomic"
	"time"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/slab"
)

// Config configures a Store.
type Config struct {
	Slab       slab.Config
	HashPower  uint8
	UseCAS     bool
	Now        func() int64 // injectable clock; defaults to real time
}

// Store is the ItemStore: a hash table of slab-backed items plus the
// process-wide flush watermark and CAS counter the design notes call
// out as state that must be threaded explicitly rather than hidden in
// globals.
type Store struct {
	alloc    *slab.SlabAllocator
	hash     *hashTable
	flushAt  int64
	casCtr   uint64
	useCAS   bool
	now      func() int64

	itemCurr     int64
	itemInsert   uint64
	itemRemove   uint64
	keyValBytes  int64
	valBytes     int64
}

// Stats is a point-in-time snapshot of item-layer counters, the Go
// analogue of item.c's INCR/DECR calls against slab_metrics.
type Stats struct {
	ItemCurr    int64
	ItemInsert  uint64
	ItemRemove  uint64
	KeyValBytes int64
	ValBytes    int64
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		ItemCurr:    s.itemCurr,
		ItemInsert:  s.itemInsert,
		ItemRemove:  s.itemRemove,
		KeyValBytes: s.keyValBytes,
		ValBytes:    s.valBytes,
	}
}

// Classes exposes the underlying slab class table for metrics
// reporting.
func (s *Store) Classes() []*slab.SlabClass { return s.alloc.Classes() }

// New builds a Store with its own SlabAllocator, wiring the Store back
// into the allocator as its ItemEvictor (slab.New's evictor
// parameter) so a reclaimed page's items are unlinked from the hash
// table before their slots are reused by another class.
func New(cfg Config) *Store {
	s := &Store{
		hash:   newHashTable(cfg.HashPower),
		useCAS: cfg.UseCAS,
		now:    cfg.Now,
	}
	if s.now == nil {
		s.now = func() int64 { return time.Now().Unix() }
	}
	s.alloc = slab.New(cfg.Slab, s)
	return s
}

// EvictItem implements slab.ItemEvictor: called by the allocator when
// a page is being reclaimed out from under this item.
func (s *Store) EvictItem(it *slab.Item) {
	if it.IsLinked {
		s.hash.deleteItem(it)
		it.IsLinked = false
		s.itemCurr--
		s.itemRemove++
		s.keyValBytes -= int64(uint32(it.Klen) + it.Vlen)
		s.valBytes -= int64(it.Vlen)
	}
}

func (s *Store) nextCas() uint64 {
	return atomic.AddUint64(&s.casCtr, 1)
}

func (s *Store) expired(it *slab.Item) bool {
	return (it.ExpireAt > 0 && it.ExpireAt < s.now()) || it.CreateAt <= s.flushAt
}

// Now returns the store's clock reading, the same one lazy expiration
// compares against, so callers translating a relative TTL into an
// absolute expire_at use a consistent notion of "now".
func (s *Store) Now() int64 { return s.now() }

// Get performs a hash lookup with lazy expiration: an expired item is
// unlinked on the spot and reported as a miss.
func (s *Store) Get(key []byte) (*slab.Item, bool) {
	it := s.hash.get(key)
	if it == nil {
		return nil, false
	}
	if s.expired(it) {
		s.unlink(it)
		return nil, false
	}
	return it, true
}

// dataBytes is the key+value payload size a slot must have room for;
// slab.SlabID compares this against each class's DataCapacity, which
// already has the per-item header (and optional CAS) overhead
// subtracted out.
func (s *Store) dataBytes(klen, vlen uint32) uint32 {
	return klen + vlen
}

// Insert allocates a fresh item, copies key and value left-aligned,
// stamps a new CAS token, and links it, replacing any prior item with
// the same key.
func (s *Store) Insert(key, val []byte, dataflag uint32, expireAt int64) (*slab.Item, corekverr.Status) {
	id := s.alloc.SlabID(s.dataBytes(uint32(len(key)), uint32(len(val))))
	if id == slab.InvalidID {
		return nil, corekverr.Oversized
	}
	it, st := s.alloc.GetItem(id)
	if st != corekverr.OK {
		return nil, st
	}

	it.Klen = uint8(len(key))
	it.Vlen = uint32(len(val))
	it.IsRaligned = false
	it.Dataflag = dataflag
	it.ExpireAt = expireAt
	it.CreateAt = s.now()
	it.Cas = s.nextCas()
	copy(it.Data, key)
	copy(it.Data[len(key):], val)

	s.link(it)
	return it, corekverr.OK
}

// Update overwrites an existing item's value in place. The caller
// must have already verified slab_id(it.klen, len(val)) == it.id (same
// class); Update itself doesn't re-check, mirroring item_update's
// precondition-by-assertion rather than a runtime branch.
func (s *Store) Update(it *slab.Item, val []byte) corekverr.Status {
	delta := int64(len(val)) - int64(it.Vlen)
	it.Vlen = uint32(len(val))
	it.IsRaligned = false
	copy(it.Data[it.Klen:], val)
	it.Cas = s.nextCas()
	if it.IsLinked {
		s.keyValBytes += delta
		s.valBytes += delta
	}
	return corekverr.OK
}

// Set implements memcached "set" semantics: write val under key
// regardless of whether it already exists, preferring an in-place
// Update (cheaper, keeps the item's identity and hash-chain position)
// over a full Insert whenever the existing item's class already has
// room for the new value, the same class-stability check Annex makes
// before choosing its fast path.
func (s *Store) Set(key, val []byte, dataflag uint32, expireAt int64) (*slab.Item, corekverr.Status) {
	if it, ok := s.Get(key); ok {
		id := s.alloc.SlabID(s.dataBytes(uint32(it.Klen), uint32(len(val))))
		if id == it.ID {
			it.Dataflag = dataflag
			it.ExpireAt = expireAt
			if st := s.Update(it, val); st != corekverr.OK {
				return nil, st
			}
			return it, corekverr.OK
		}
	}
	return s.Insert(key, val, dataflag, expireAt)
}

// Delete unlinks the item keyed by key, if present.
func (s *Store) Delete(key []byte) bool {
	it, ok := s.Get(key)
	if !ok {
		return false
	}
	s.unlink(it)
	return true
}

// Annex implements append (append=true) or prepend (append=false):
// fast path copies in place when the combined size still fits the
// existing class and the existing alignment matches the operation;
// slow path allocates a fresh item of the right class and re-aligns.
func (s *Store) Annex(oit *slab.Item, val []byte, isAppend bool) (*slab.Item, corekverr.Status) {
	ntotal := oit.Vlen + uint32(len(val))
	id := s.alloc.SlabID(s.dataBytes(uint32(oit.Klen), ntotal))
	if id == slab.InvalidID {
		return nil, corekverr.Oversized
	}

	if isAppend {
		if id == oit.ID && !oit.IsRaligned {
			copy(oit.Data[uint32(oit.Klen)+oit.Vlen:], val)
			added := int64(len(val))
			oit.Vlen = ntotal
			oit.Cas = s.nextCas()
			if oit.IsLinked {
				s.keyValBytes += added
				s.valBytes += added
			}
			return oit, corekverr.OK
		}
		nit, st := s.alloc.GetItem(id)
		if st != corekverr.OK {
			return nil, st
		}
		copy(nit.Data, oit.Key())
		nit.Klen = oit.Klen
		nit.ExpireAt = oit.ExpireAt
		nit.CreateAt = s.now()
		nit.Dataflag = oit.Dataflag
		nit.Cas = s.nextCas()
		// value left-aligned: old value then new value
		copy(nit.Data[nit.Klen:], oit.Value())
		copy(nit.Data[uint32(nit.Klen)+oit.Vlen:], val)
		nit.Vlen = ntotal
		nit.IsRaligned = false
		s.unlink(oit)
		s.link(nit)
		return nit, corekverr.OK
	}

	// prepend
	if id == oit.ID && oit.IsRaligned {
		dst := oit.Data[len(oit.Data)-int(ntotal) : len(oit.Data)-int(oit.Vlen)]
		copy(dst, val)
		added := int64(len(val))
		oit.Vlen = ntotal
		oit.Cas = s.nextCas()
		if oit.IsLinked {
			s.keyValBytes += added
			s.valBytes += added
		}
		return oit, corekverr.OK
	}
	nit, st := s.alloc.GetItem(id)
	if st != corekverr.OK {
		return nil, st
	}
	copy(nit.Data[:oit.Klen], oit.Key())
	nit.Klen = oit.Klen
	nit.ExpireAt = oit.ExpireAt
	nit.CreateAt = s.now()
	nit.Dataflag = oit.Dataflag
	nit.Cas = s.nextCas()
	nit.IsRaligned = true
	nit.Vlen = ntotal
	// value right-aligned: new value then old value, ending at Data's tail
	tail := nit.Data[len(nit.Data)-int(ntotal):]
	copy(tail, val)
	copy(tail[len(val):], oit.Value())
	s.unlink(oit)
	s.link(nit)
	return nit, corekverr.OK
}

// UseCAS reports whether the store was configured with CAS tokens
// enabled. Items are stamped with a CAS token either way, and the
// dispatch layer does not consult this.
func (s *Store) UseCAS() bool { return s.useCAS }

// Flush sets the global flush watermark; existing items become
// lazily expired on their next Get rather than being swept eagerly.
func (s *Store) Flush() {
	s.flushAt = s.now()
}

func (s *Store) link(it *slab.Item) {
	it.IsLinked = true
	it.InFreeq = false
	if prev := s.hash.put(it); prev != nil {
		s.unlink(prev)
	}
	s.itemCurr++
	s.itemInsert++
	s.keyValBytes += int64(uint32(it.Klen) + it.Vlen)
	s.valBytes += int64(it.Vlen)
}

func (s *Store) unlink(it *slab.Item) {
	if it.IsLinked {
		it.IsLinked = false
		s.hash.deleteItem(it)
		s.itemCurr--
		s.itemRemove++
		s.keyValBytes -= int64(uint32(it.Klen) + it.Vlen)
		s.valBytes -= int64(it.Vlen)
	}
	s.alloc.PutItem(it)
}
