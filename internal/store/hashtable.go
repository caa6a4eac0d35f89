package store

import "github.com/corekv/corekv/internal/slab"

// hashTable is an open-chaining table sized to a power of two, one
// singly linked chain per bucket via Item.HashNext, grounded on
// item.c's hashtable_put/hashtable_get/hashtable_delete call
// contract (the hash table's own source wasn't among the retrieved
// files, so the chaining discipline below follows the invariants
// item.c documents at its call sites: insertion replaces any prior
// entry with the same key, lookup and delete both do a byte-wise key
// comparison while walking the chain).
type hashTable struct {
	buckets []*slab.Item
	mask    uint64
}

func newHashTable(power uint8) *hashTable {
	n := uint64(1) << power
	return &hashTable{buckets: make([]*slab.Item, n), mask: n - 1}
}

func (h *hashTable) bucketIndex(key []byte) uint64 {
	return fnv1a(key) & h.mask
}

// get walks the bucket chain for a byte-wise match.
func (h *hashTable) get(key []byte) *slab.Item {
	for it := h.buckets[h.bucketIndex(key)]; it != nil; it = it.HashNext {
		if keyEqual(it.Key(), key) {
			return it
		}
	}
	return nil
}

// put links it at the head of its bucket, first unlinking (and
// returning) any prior item with the same key so the caller can
// return it to its class free queue.
func (h *hashTable) put(it *slab.Item) *slab.Item {
	idx := h.bucketIndex(it.Key())
	prev := h.removeByKey(idx, it.Key())
	it.HashNext = h.buckets[idx]
	h.buckets[idx] = it
	return prev
}

// deleteByKey removes and returns the item keyed by key, or nil.
func (h *hashTable) deleteByKey(key []byte) *slab.Item {
	idx := h.bucketIndex(key)
	return h.removeByKey(idx, key)
}

func (h *hashTable) removeByKey(idx uint64, key []byte) *slab.Item {
	var prev *slab.Item
	cur := h.buckets[idx]
	for cur != nil {
		if keyEqual(cur.Key(), key) {
			if prev == nil {
				h.buckets[idx] = cur.HashNext
			} else {
				prev.HashNext = cur.HashNext
			}
			cur.HashNext = nil
			return cur
		}
		prev = cur
		cur = cur.HashNext
	}
	return nil
}

// deleteItem removes it by identity (used during slab eviction, where
// the evicted item's key may already differ in content from what's
// currently linked if a concurrent replace raced it — not possible
// under the single-threaded event loop model, but identity removal is
// still the correct primitive since eviction names a specific item).
func (h *hashTable) deleteItem(it *slab.Item) {
	idx := h.bucketIndex(it.Key())
	var prev *slab.Item
	cur := h.buckets[idx]
	for cur != nil {
		if cur == it {
			if prev == nil {
				h.buckets[idx] = cur.HashNext
			} else {
				prev.HashNext = cur.HashNext
			}
			cur.HashNext = nil
			return
		}
		prev = cur
		cur = cur.HashNext
	}
}

func keyEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fnv1a is the FNV-1a hash, a small, dependency-free, well-distributed
// hash appropriate for a bucket index; original_source's own hash
// function wasn't among the retrieved files.
func fnv1a(key []byte) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for _, b := range key {
		h ^= uint64(b)
		h *= prime
	}
	return h
}
