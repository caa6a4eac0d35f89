// Package memcache implements the memcached ASCII wire dialect: SP-
// separated command lines terminated by CRLF, with a length-prefixed
// payload for storage commands. It follows the same HDR/VAL two-phase
// state machine and atomic-consume-on-complete discipline as the resp
// package (itself grounded on original_source's
// protocol/data/redis/parse.c), adapted from token/length framing to
// line/field framing since the memcached dialect is SP-delimited
// rather than length-prefixed at every level.
package memcache

import (
	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

const crlfLen = 2

// findCRLF scans the readable region for a terminating "\r\n", returning
// its offset relative to the read cursor, or Incomplete if not found
// yet (a lone trailing '\r' is treated as incomplete, not invalid,
// since the '\n' may simply not have arrived).
func findCRLF(buf *dynbuf.DynBuf) (int, corekverr.Status) {
	readable := buf.Readable()
	for i := 0; i < len(readable); i++ {
		if readable[i] == '\r' {
			if i+1 >= len(readable) {
				return 0, corekverr.Incomplete
			}
			if readable[i+1] != '\n' {
				return 0, corekverr.Invalid
			}
			return i, corekverr.OK
		}
	}
	return 0, corekverr.Incomplete
}

// line is a single SP-delimited command line, split lazily into
// fields. Each field aliases buf's backing array.
type line struct {
	fields [][]byte
}

func splitFields(b []byte) [][]byte {
	var fields [][]byte
	i := 0
	for i < len(b) {
		for i < len(b) && b[i] == ' ' {
			i++
		}
		start := i
		for i < len(b) && b[i] != ' ' {
			i++
		}
		if i > start {
			fields = append(fields, b[start:i])
		}
	}
	return fields
}

// parseLine consumes one CRLF-terminated line and returns its
// SP-split fields. On Incomplete the read cursor is untouched.
func parseLine(buf *dynbuf.DynBuf) (line, corekverr.Status) {
	off, st := findCRLF(buf)
	if st != corekverr.OK {
		return line{}, st
	}
	raw := buf.Readable()[:off]
	buf.Advance(off + crlfLen)
	return line{fields: splitFields(raw)}, corekverr.OK
}

var storageCommands = map[string]proto.RequestType{
	"set":     proto.Set,
	"add":     proto.Add,
	"replace": proto.Replace,
	"append":  proto.Append,
	"prepend": proto.Prepend,
	"cas":     proto.Cas,
}

var retrievalCommands = map[string]proto.RequestType{
	"get":  proto.Get,
	"gets": proto.Gets,
}

func pushKey(req *proto.Request, key []byte) corekverr.Status {
	if len(req.Keys) >= proto.MaxBatchSize {
		return corekverr.Invalid
	}
	req.Keys = append(req.Keys, key)
	return corekverr.OK
}

func parseUint64(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		if n > (1<<64-1)/10 {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

func parseInt64(b []byte) (int64, bool) {
	n, ok := parseUint64(b)
	if !ok {
		return 0, false
	}
	return int64(n), true
}

// parseHdr parses the command line: the verb, its arguments, and for
// storage commands the value length that drives the VAL phase. On any
// failure the read cursor is restored to where it stood before the
// line began.
func parseHdr(req *proto.Request, buf *dynbuf.DynBuf) (valLen int, status corekverr.Status) {
	start := buf.ReadCursor()

	ln, st := parseLine(buf)
	if st != corekverr.OK {
		return 0, st
	}
	if len(ln.fields) == 0 {
		buf.SetReadCursor(start)
		return 0, corekverr.Invalid
	}

	verb := string(ln.fields[0])
	args := ln.fields[1:]

	switch verb {
	case "quit":
		req.Type = proto.Quit
		return 0, corekverr.OK

	case "flush_all":
		req.Type = proto.Flush
		if len(args) > 0 && string(args[len(args)-1]) == "noreply" {
			req.Noreply = true
		}
		return 0, corekverr.OK

	case "stats":
		req.Type = proto.Stats
		return 0, corekverr.OK

	case "ping":
		req.Type = proto.Ping
		return 0, corekverr.OK

	case "delete":
		if len(args) == 0 {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		req.Type = proto.Delete
		if st := pushKey(req, args[0]); st != corekverr.OK {
			buf.SetReadCursor(start)
			return 0, st
		}
		if len(args) > 1 && string(args[len(args)-1]) == "noreply" {
			req.Noreply = true
		}
		return 0, corekverr.OK

	case "incr", "decr":
		if len(args) < 2 {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		if verb == "incr" {
			req.Type = proto.Incr
		} else {
			req.Type = proto.Decr
		}
		if st := pushKey(req, args[0]); st != corekverr.OK {
			buf.SetReadCursor(start)
			return 0, st
		}
		delta, ok := parseUint64(args[1])
		if !ok {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		req.Delta = delta
		if len(args) > 2 && string(args[len(args)-1]) == "noreply" {
			req.Noreply = true
		}
		return 0, corekverr.OK
	}

	if typ, ok := retrievalCommands[verb]; ok {
		if len(args) == 0 {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		req.Type = typ
		for _, k := range args {
			if st := pushKey(req, k); st != corekverr.OK {
				buf.SetReadCursor(start)
				return 0, st
			}
		}
		return 0, corekverr.OK
	}

	if typ, ok := storageCommands[verb]; ok {
		minArgs := 4 // key flags exptime bytes
		if typ == proto.Cas {
			minArgs = 5 // + cas unique
		}
		if len(args) < minArgs {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		req.Type = typ
		if st := pushKey(req, args[0]); st != corekverr.OK {
			buf.SetReadCursor(start)
			return 0, st
		}
		flags, ok := parseUint64(args[1])
		if !ok {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		req.Flags = uint32(flags)
		exptime, ok := parseInt64(args[2])
		if !ok {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		req.ExptimeSeconds = exptime
		n, ok := parseUint64(args[3])
		if !ok {
			buf.SetReadCursor(start)
			return 0, corekverr.Invalid
		}
		last := 4
		if typ == proto.Cas {
			cas, ok := parseUint64(args[4])
			if !ok {
				buf.SetReadCursor(start)
				return 0, corekverr.Invalid
			}
			req.CasToken = cas
			last = 5
		}
		if len(args) > last && string(args[len(args)-1]) == "noreply" {
			req.Noreply = true
		}
		return int(n), corekverr.OK
	}

	buf.SetReadCursor(start)
	return 0, corekverr.Invalid
}

// isStorageVerb reports whether req carries a VAL phase.
func isStorageVerb(t proto.RequestType) bool {
	switch t {
	case proto.Set, proto.Add, proto.Replace, proto.Append, proto.Prepend, proto.Cas:
		return true
	}
	return false
}

// ParseRequest parses one command out of buf's readable region.
// req must be Reset by the caller before the first call for a fresh
// frame. On any non-OK status, Incomplete included, the read cursor
// is left exactly where it was before this call began; a value that
// has not fully arrived also Resets req, so the next call parses the
// frame again from its command line.
func ParseRequest(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status {
	frameStart := buf.ReadCursor()

	if req.PState == proto.StateHdr {
		valLen, st := parseHdr(req, buf)
		if st != corekverr.OK {
			if st != corekverr.Incomplete {
				buf.SetReadCursor(frameStart)
			}
			return st
		}
		if isStorageVerb(req.Type) {
			req.PState = proto.StateVal
			req.PendingValueLen = valLen
		}
	}

	if req.PState == proto.StateVal {
		n := req.PendingValueLen
		if buf.ReadableSize() < n+crlfLen {
			buf.SetReadCursor(frameStart)
			req.Reset()
			return corekverr.Incomplete
		}
		readable := buf.Readable()
		if readable[n] != '\r' || readable[n+1] != '\n' {
			buf.SetReadCursor(frameStart)
			return corekverr.Invalid
		}
		req.Value = readable[:n]
		buf.Advance(n + crlfLen)
	}

	req.RState = proto.Parsed
	return corekverr.OK
}
