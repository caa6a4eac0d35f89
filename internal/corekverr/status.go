// Package corekverr defines the closed status taxonomy shared by the
// buffer, codec, slab and store layers. A
// Status is a small value type, not a wrapped error chain: every
// fallible operation in this module returns one, the way the FUSE
// layer this package is modeled on returns a Status enum instead of
// an error interface.
package corekverr

// Status is a result code returned by buffer, codec, slab and store
// operations. The zero value is OK.
type Status int32

const (
	// OK indicates success.
	OK Status = iota

	// Incomplete means the codec needs more input bytes before it can
	// produce a full frame. Not an error: expected during normal
	// incremental parsing, never logged as a failure.
	Incomplete

	// Invalid means the input is malformed: bad framing, an unknown
	// command, or a non-digit where a length was expected.
	Invalid

	// Overflow means a decimal integer field exceeded the 64-bit
	// unsigned range.
	Overflow

	// Empty means a bulk/argument list ended cleanly with no further
	// tokens (used internally by GET/MGET parsing to detect the end
	// of the key list; not itself surfaced to a client).
	Empty

	// BufOverflow means a DynBuf could not grow enough to hold the
	// next write; the owning connection should be closed.
	BufOverflow

	// Oversized means klen+vlen exceeds the largest slab class.
	Oversized

	// NoMem means slab allocation failed and no evictable candidate
	// was available.
	NoMem

	// NotFound means the key is absent from the item store.
	NotFound

	// NotStored means an add/replace precondition was not met.
	NotStored

	// Exists means a cas precondition was not met (stale token).
	Exists
)

var names = [...]string{
	OK:          "OK",
	Incomplete:  "INCOMPLETE",
	Invalid:     "INVALID",
	Overflow:    "OVERFLOW",
	Empty:       "EMPTY",
	BufOverflow: "BUF_OVERFLOW",
	Oversized:   "OVERSIZED",
	NoMem:       "NO_MEM",
	NotFound:    "NOT_FOUND",
	NotStored:   "NOT_STORED",
	Exists:      "EXISTS",
}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(names) && names[s] != "" {
		return names[s]
	}
	return "UNKNOWN_STATUS"
}

// Error satisfies the error interface so a Status can be returned and
// compared like any other Go error, without the caller having to
// special-case Incomplete as an out-of-band control flow marker.
func (s Status) Error() string {
	return s.String()
}

// Ok reports whether s represents success.
func (s Status) Ok() bool {
	return s == OK
}

// Logged reports whether s warrants a log line. Incomplete is routine
// control flow during incremental parsing and is never logged;
// NotFound/NotStored/Exists are ordinary memcached outcomes, not
// errors at the protocol layer.
func (s Status) Logged() bool {
	switch s {
	case OK, Incomplete, NotFound, NotStored, Exists:
		return false
	default:
		return true
	}
}
