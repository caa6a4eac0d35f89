// Package resp implements a RESP-like wire dialect: bulk strings ("$len\r\ndata\r\n"), arrays
// ("*count\r\n..."), simple strings ("+text\r\n"), errors
// ("-text\r\n") and integers (":dec\r\n"). Parsing is incremental and
// zero-copy, directly grounded on original_source's
// protocol/data/redis/parse.c: the same two-phase HDR/VAL state
// machine, the same _try_crlf/_check_uint/_parse_bulk primitives, and
// the same atomic-consume-on-complete discipline (on any non-OK
// status the read cursor is restored).
//
// It plays the role that fuse/request.go's request.parse plays for
// the kernel's binary FUSE protocol: a handler keyed by a short token
// (there, an opcode; here, a command name) populates a reusable
// Request from a byte buffer, and yields control back to the caller
// when there isn't enough input yet.
package resp

import (
	"math"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

const crlfLen = 2

// tryCRLF requires a CR at position p, followed by LF, treating a CR
// at the very end of the readable region as "not yet available"
// rather than invalid (the next byte may simply not have arrived).
func tryCRLF(buf *dynbuf.DynBuf, p int) corekverr.Status {
	readable := buf.Readable()
	rel := p - buf.ReadCursor()
	if rel >= len(readable) || readable[rel] != '\r' {
		return corekverr.Invalid
	}
	if rel+1 >= len(readable) {
		return corekverr.Incomplete
	}
	if readable[rel+1] != '\n' {
		return corekverr.Invalid
	}
	return corekverr.OK
}

// checkUint parses decimal digits starting at the read cursor up to a
// CRLF, rejecting overflow, absence of digits, and non-digit
// terminators. Input that ends before a terminator is seen returns
// Incomplete. On success it advances the read cursor past the CRLF.
func checkUint(buf *dynbuf.DynBuf, max uint64) (uint64, corekverr.Status) {
	readable := buf.Readable()
	var num uint64
	i := 0
	for i < len(readable) && isDigit(readable[i]) {
		if num > max/10 {
			return 0, corekverr.Invalid
		}
		num = num*10 + uint64(readable[i]-'0')
		i++
	}
	if i == len(readable) {
		return 0, corekverr.Incomplete
	}
	if i == 0 {
		return 0, corekverr.Empty
	}

	st := tryCRLF(buf, buf.ReadCursor()+i)
	if st != corekverr.OK {
		return 0, st
	}
	buf.Advance(i + crlfLen)
	return num, corekverr.OK
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// parseInteger parses a ":dec\r\n" frame, the RESP integer type used
// for numeric response fields (flags, lengths, CAS tokens, INCR/DECR
// results) rather than as a bulk string.
func parseInteger(buf *dynbuf.DynBuf) (int64, corekverr.Status) {
	readable := buf.Readable()
	if len(readable) == 0 {
		return 0, corekverr.Incomplete
	}
	if readable[0] != ':' {
		return 0, corekverr.Invalid
	}
	if len(readable) == 1 {
		return 0, corekverr.Incomplete
	}

	start := buf.ReadCursor()
	neg := false
	off := 1
	if readable[1] == '-' {
		neg = true
		off = 2
	}
	buf.Advance(off)

	n, st := checkUint(buf, math.MaxInt64)
	if st != corekverr.OK {
		buf.SetReadCursor(start)
		return 0, st
	}
	if neg {
		return -int64(n), corekverr.OK
	}
	return int64(n), corekverr.OK
}

// parseBulk parses a "$len\r\ndata\r\n" frame and returns a view of
// data into buf's backing array, without copying.
func parseBulk(buf *dynbuf.DynBuf) ([]byte, corekverr.Status) {
	readable := buf.Readable()
	if len(readable) == 0 {
		return nil, corekverr.Incomplete
	}
	if readable[0] != '$' {
		return nil, corekverr.Invalid
	}
	if len(readable) == 1 {
		return nil, corekverr.Incomplete
	}

	start := buf.ReadCursor()
	buf.Advance(1)

	n, st := checkUint(buf, math.MaxUint64)
	if st != corekverr.OK {
		buf.SetReadCursor(start)
		return nil, st
	}

	if uint64(buf.ReadableSize()) < n+crlfLen {
		buf.SetReadCursor(start)
		return nil, corekverr.Incomplete
	}

	data := buf.Readable()[:n]
	buf.Advance(int(n) + crlfLen)
	return data, corekverr.OK
}

// parseBulkNumeric parses a bulk string and validates it is composed
// entirely of decimal digits, returning the parsed value.
func parseBulkNumeric(buf *dynbuf.DynBuf, max uint64) (uint64, corekverr.Status) {
	start := buf.ReadCursor()
	s, st := parseBulk(buf)
	if st != corekverr.OK {
		return 0, st
	}
	if len(s) == 0 || len(s) > 20 {
		buf.SetReadCursor(start)
		return 0, corekverr.Invalid
	}
	var num uint64
	for _, c := range s {
		if !isDigit(c) {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		if num > max/10 {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		num = num*10 + uint64(c-'0')
	}
	return num, corekverr.OK
}

// checkCommand maps a command token to a RequestType using the same
// length-bucketed recognition as _check_req_type in parse.c.
func checkCommand(tok []byte) proto.RequestType {
	switch len(tok) {
	case 3:
		if str3cmp(tok, 'g', 'e', 't') {
			return proto.Get
		}
		if str3cmp(tok, 's', 'e', 't') {
			return proto.Set
		}
	case 4:
		if str4cmp(tok, 'm', 'g', 'e', 't') {
			return proto.MGet
		}
		if str4cmp(tok, 'q', 'u', 'i', 't') {
			return proto.Quit
		}
	case 5:
		if str5cmp(tok, 'f', 'l', 'u', 's', 'h') {
			return proto.Flush
		}
	case 6:
		if str6cmp(tok, 'd', 'e', 'l', 'e', 't', 'e') {
			return proto.Delete
		}
		if str6cmp(tok, 'i', 'n', 'c', 'r', 'b', 'y') {
			return proto.Incr
		}
		if str6cmp(tok, 'd', 'e', 'c', 'r', 'b', 'y') {
			return proto.Decr
		}
	}
	return proto.Unknown
}

func str3cmp(s []byte, a, b, c byte) bool {
	return len(s) == 3 && s[0] == a && s[1] == b && s[2] == c
}
func str4cmp(s []byte, a, b, c, d byte) bool {
	return len(s) == 4 && s[0] == a && s[1] == b && s[2] == c && s[3] == d
}
func str5cmp(s []byte, a, b, c, d, e byte) bool {
	return len(s) == 5 && s[0] == a && s[1] == b && s[2] == c && s[3] == d && s[4] == e
}
func str6cmp(s []byte, a, b, c, d, e, f byte) bool {
	return len(s) == 6 && s[0] == a && s[1] == b && s[2] == c && s[3] == d && s[4] == e && s[5] == f
}

// parseArrayHeader consumes a "*count\r\n" prefix if present and
// returns its count. The request line is wrapped in an array whenever
// the command takes one or more arguments, and left unwrapped when it
// doesn't, mirroring compose.c's asymmetric framing of commands that
// take arguments versus those that don't. For the retrieve commands
// the count bounds the key list; an unwrapped key list ends at the
// first Empty parseBulk.
func parseArrayHeader(buf *dynbuf.DynBuf) (count uint64, consumed bool, status corekverr.Status) {
	readable := buf.Readable()
	if len(readable) == 0 {
		return 0, false, corekverr.Incomplete
	}
	if readable[0] != '*' {
		return 0, false, corekverr.OK
	}
	start := buf.ReadCursor()
	buf.Advance(1)
	n, st := checkUint(buf, math.MaxUint64)
	if st != corekverr.OK {
		buf.SetReadCursor(start)
		return 0, false, st
	}
	return n, true, corekverr.OK
}

func pushKey(req *proto.Request, key []byte) corekverr.Status {
	if len(req.Keys) >= proto.MaxBatchSize {
		return corekverr.Invalid
	}
	req.Keys = append(req.Keys, key)
	return corekverr.OK
}

// subrequestRetrieve reads nkeys keys, or, when nkeys is negative,
// keys up to the first Empty parseBulk.
func subrequestRetrieve(req *proto.Request, buf *dynbuf.DynBuf, nkeys int) corekverr.Status {
	for {
		if nkeys >= 0 && len(req.Keys) == nkeys {
			if nkeys == 0 {
				return corekverr.Invalid
			}
			return corekverr.OK
		}
		key, st := parseBulk(buf)
		switch st {
		case corekverr.OK:
			if pst := pushKey(req, key); pst != corekverr.OK {
				return pst
			}
		case corekverr.Empty:
			if len(req.Keys) == 0 {
				return corekverr.Invalid
			}
			return corekverr.OK
		default:
			return st
		}
	}
}

func subrequestDelete(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status {
	key, st := parseBulk(buf)
	if st != corekverr.OK {
		return st
	}
	return pushKey(req, key)
}

func subrequestArithmetic(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status {
	key, st := parseBulk(buf)
	if st != corekverr.OK {
		return st
	}
	if st := pushKey(req, key); st != corekverr.OK {
		return st
	}
	delta, st := parseBulkNumeric(buf, math.MaxUint64)
	if st != corekverr.OK {
		return st
	}
	req.Delta = delta
	return corekverr.OK
}

// parseHdr parses the header line of a request: the command token
// plus whatever arguments the command takes before any trailing value
// bulk. On any failure it restores the read cursor to where it stood
// before the header began, so a short read never leaves a partially
// consumed frame.
func parseHdr(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status {
	old := buf.ReadCursor()

	nelem, wrapped, st := parseArrayHeader(buf)
	if st != corekverr.OK {
		buf.SetReadCursor(old)
		return st
	}
	nkeys := -1
	if wrapped {
		nkeys = int(nelem) - 1
	}

	tok, st := parseBulk(buf)
	if st != corekverr.OK {
		buf.SetReadCursor(old)
		return st
	}
	req.Type = checkCommand(tok)
	if req.Type == proto.Unknown {
		buf.SetReadCursor(old)
		return corekverr.Invalid
	}

	switch req.Type {
	case proto.Get, proto.MGet:
		st = subrequestRetrieve(req, buf, nkeys)
	case proto.Delete:
		st = subrequestDelete(req, buf)
	case proto.Incr, proto.Decr:
		st = subrequestArithmetic(req, buf)
	case proto.Set:
		// one key; value bulk is parsed in the VAL phase.
		var key []byte
		key, st = parseBulk(buf)
		if st == corekverr.OK {
			st = pushKey(req, key)
		}
	case proto.Flush, proto.Quit:
		// no arguments
	}

	if st != corekverr.OK {
		buf.SetReadCursor(old)
		return st
	}
	return corekverr.OK
}

// ParseRequest parses one request out of buf's readable region.
// req must be Reset by the caller before the first call for a fresh
// frame. On any non-OK status, Incomplete included, the read cursor
// is left exactly where it was before this call began (atomic
// framing); an Incomplete value phase also Resets req, so the next
// call parses the frame again from its header.
func ParseRequest(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status {
	frameStart := buf.ReadCursor()

	if req.PState == proto.StateHdr {
		if st := parseHdr(req, buf); st != corekverr.OK {
			if st != corekverr.Incomplete {
				buf.SetReadCursor(frameStart)
			}
			return st
		}
		if req.Type == proto.Set {
			req.PState = proto.StateVal
		}
	}

	if req.PState == proto.StateVal {
		val, st := parseBulk(buf)
		if st != corekverr.OK {
			buf.SetReadCursor(frameStart)
			if st == corekverr.Incomplete {
				req.Reset()
			}
			return st
		}
		req.Value = val
	}

	req.RState = proto.Parsed
	return corekverr.OK
}
