package memcache

import (
	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

var rspVerbs = map[string]proto.ResponseType{
	"STORED":       proto.RspStored,
	"NOT_STORED":   proto.RspNotStored,
	"EXISTS":       proto.RspExists,
	"NOT_FOUND":    proto.RspNotFound,
	"DELETED":      proto.RspDeleted,
	"OK":           proto.RspOK,
	"END":          proto.RspEnd,
	"PONG":         proto.RspPong,
	"VALUE":        proto.RspValue,
	"STAT":         proto.RspStat,
	"CLIENT_ERROR": proto.RspClientError,
	"SERVER_ERROR": proto.RspServerError,
}

// ParseResponse parses one reply line (plus, for VALUE, its payload)
// out of buf's readable region. A bare decimal line (the reply to
// incr/decr) is recognized by its leading digit rather than by a verb
// token, the way a real client distinguishes a numeric reply from a
// line-initial keyword.
func ParseResponse(rsp *proto.Response, buf *dynbuf.DynBuf) corekverr.Status {
	start := buf.ReadCursor()

	ln, st := parseLine(buf)
	if st != corekverr.OK {
		return st
	}
	if len(ln.fields) == 0 {
		buf.SetReadCursor(start)
		return corekverr.Invalid
	}

	verb := string(ln.fields[0])
	if isDigit(verb[0]) || (verb[0] == '-' && len(verb) > 1) {
		v, ok := parseInt64(ln.fields[0])
		if !ok {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		rsp.Type = proto.RspNumeric
		rsp.Vint = v
		return corekverr.OK
	}

	typ, ok := rspVerbs[verb]
	if !ok {
		buf.SetReadCursor(start)
		return corekverr.Invalid
	}
	rsp.Type = typ

	switch typ {
	case proto.RspClientError, proto.RspServerError:
		if len(ln.fields) < 2 {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		rsp.Value = ln.fields[1]

	case proto.RspStat:
		if len(ln.fields) < 3 {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		rsp.StatName = ln.fields[1]
		rsp.StatValue = ln.fields[2]

	case proto.RspValue:
		if len(ln.fields) < 4 {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		rsp.Key = ln.fields[1]
		flag, ok := parseUint64(ln.fields[2])
		if !ok {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		rsp.Flag = uint32(flag)
		vlen, ok := parseUint64(ln.fields[3])
		if !ok {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		if len(ln.fields) > 4 {
			cas, ok := parseUint64(ln.fields[4])
			if !ok {
				buf.SetReadCursor(start)
				return corekverr.Invalid
			}
			rsp.Cas = true
			rsp.Vcas = cas
		}

		n := int(vlen)
		if buf.ReadableSize() < n+crlfLen {
			buf.SetReadCursor(start)
			return corekverr.Incomplete
		}
		readable := buf.Readable()
		if readable[n] != '\r' || readable[n+1] != '\n' {
			buf.SetReadCursor(start)
			return corekverr.Invalid
		}
		rsp.Value = readable[:n]
		buf.Advance(n + crlfLen)
	}

	return corekverr.OK
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
