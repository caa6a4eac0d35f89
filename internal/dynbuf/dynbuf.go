// Package dynbuf implements the growable byte buffer used for all
// network I/O. It plays the role that
// fuse.BufferPool plays for go-fuse's kernel I/O buffers, generalized
// from a pool of fixed power-of-two page multiples to a single
// resizable buffer per connection, because the codecs need to grow a
// buffer in place (appending partially-read frames) rather than swap
// it for a same-sized one from a pool.
package dynbuf

import "github.com/corekv/corekv/internal/corekverr"

// DefaultInitSize is the default initial capacity of a DynBuf.
const DefaultInitSize = 1 << 10 // 1 KiB

// DefaultMaxPower bounds the default maximum capacity to
// DefaultInitSize << DefaultMaxPower.
const DefaultMaxPower = 10 // 1 KiB << 10 == 1 MiB

// DynBuf is a contiguous byte region with independent read and write
// cursors. The readable region is buf[r:w]; the writable region is
// buf[w:cap(buf)]. Growth is geometric (doubling) and bounded by
// maxSize; capacity is always a power-of-two multiple of initSize.
//
// A DynBuf is owned by exactly one connection and is never shared; it
// carries no lock.
type DynBuf struct {
	buf []byte
	r   int
	w   int

	initSize int
	maxSize  int
}

// New creates a DynBuf at initSize capacity. maxSize must be a
// multiple of initSize; if either is zero, the package defaults are
// used.
func New(initSize, maxSize int) *DynBuf {
	if initSize <= 0 {
		initSize = DefaultInitSize
	}
	if maxSize <= 0 {
		maxSize = initSize << DefaultMaxPower
	}
	return &DynBuf{
		buf:      make([]byte, initSize),
		initSize: initSize,
		maxSize:  maxSize,
	}
}

// Capacity returns the current capacity C.
func (b *DynBuf) Capacity() int { return len(b.buf) }

// MaxSize returns the configured capacity ceiling.
func (b *DynBuf) MaxSize() int { return b.maxSize }

// ReadableSize returns w - r, the number of unread bytes.
func (b *DynBuf) ReadableSize() int { return b.w - b.r }

// WritableSize returns C - w, the remaining room for writes.
func (b *DynBuf) WritableSize() int { return len(b.buf) - b.w }

// Readable returns the unread region [r, w). The returned slice
// aliases the buffer: it is invalidated by any call that may
// reallocate (Double, Fit), and callers must not retain it across
// such a call.
func (b *DynBuf) Readable() []byte { return b.buf[b.r:b.w] }

// Writable returns the writable region [w, C).
func (b *DynBuf) Writable() []byte { return b.buf[b.w:] }

// ReadCursor and WriteCursor expose the raw offsets, used by codecs
// that need to save and restore a cursor atomically: on any non-OK
// parse status, the read cursor is restored to its value before
// parsing began.
func (b *DynBuf) ReadCursor() int  { return b.r }
func (b *DynBuf) WriteCursor() int { return b.w }

// SetReadCursor and SetWriteCursor move the cursors directly. Callers
// are responsible for preserving 0 <= r <= w <= C.
func (b *DynBuf) SetReadCursor(r int)  { b.r = r }
func (b *DynBuf) SetWriteCursor(w int) { b.w = w }

// Advance moves the read cursor forward by n bytes after the caller
// has consumed them.
func (b *DynBuf) Advance(n int) { b.r += n }

// Produced moves the write cursor forward by n bytes after the caller
// has written directly into Writable().
func (b *DynBuf) Produced(n int) { b.w += n }

// Write appends p to the writable region, growing the buffer with
// Fit if necessary. Returns corekverr.BufOverflow if even the maximum
// capacity cannot hold the result.
func (b *DynBuf) Write(p []byte) corekverr.Status {
	need := b.w + len(p)
	if need > len(b.buf) {
		if st := b.Fit(need); !st.Ok() {
			return st
		}
	}
	copy(b.buf[b.w:], p)
	b.w += len(p)
	return corekverr.OK
}

// Double reallocates the buffer to twice its current capacity,
// preserving [0, w) bit-exact. Fails with BufOverflow if doubling
// would exceed maxSize.
func (b *DynBuf) Double() corekverr.Status {
	nsize := len(b.buf) * 2
	if nsize > b.maxSize {
		return corekverr.BufOverflow
	}
	return b.resize(nsize)
}

// Fit grows the buffer to the smallest power-of-two multiple of
// initSize that is at least cap, subject to maxSize. It is a no-op if
// the current capacity already suffices.
func (b *DynBuf) Fit(cap int) corekverr.Status {
	if cap <= len(b.buf) {
		return corekverr.OK
	}
	if cap > b.maxSize {
		return corekverr.BufOverflow
	}
	nsize := b.initSize
	for nsize < cap {
		nsize *= 2
	}
	return b.resize(nsize)
}

// CheckSize grows the buffer (doubling, as compose paths do) until at
// least n more bytes are writable, or returns BufOverflow. This is
// the Go analogue of redis/compose.c's _check_buf_size: codecs call it
// before writing an upper-bound-sized response so a single write
// never straddles a resize.
func (b *DynBuf) CheckSize(n int) corekverr.Status {
	for n > b.WritableSize() {
		if st := b.Double(); !st.Ok() {
			return st
		}
	}
	return corekverr.OK
}

// Shrink reallocates the buffer back to initSize. The caller must
// ensure w <= initSize before calling (callers typically Reset first).
func (b *DynBuf) Shrink() corekverr.Status {
	if b.w > b.initSize {
		return corekverr.BufOverflow
	}
	return b.resize(b.initSize)
}

// Reset rewinds both cursors to zero without reallocating. Any
// unconsumed bytes in [r, w) are discarded; callers must not do this
// while a parsed Request still holds views into the buffer.
func (b *DynBuf) Reset() {
	b.r = 0
	b.w = 0
}

// Compact slides the unread region [r, w) down to offset 0, freeing up
// writable space without growing the buffer. Used by the connection
// loop between reads so that a long-lived connection doesn't grow its
// buffer forever serving many small pipelined requests.
func (b *DynBuf) Compact() {
	if b.r == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.r:b.w])
	b.r = 0
	b.w = n
}

func (b *DynBuf) resize(nsize int) corekverr.Status {
	nbuf := make([]byte, nsize)
	copy(nbuf, b.buf[:b.w])
	b.buf = nbuf
	return corekverr.OK
}
