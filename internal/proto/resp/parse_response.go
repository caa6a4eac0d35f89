package resp

import (
	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

var rspTokens = map[string]proto.ResponseType{
	"OK":          proto.RspOK,
	"END":         proto.RspEnd,
	"STORED":      proto.RspStored,
	"EXISTS":      proto.RspExists,
	"DELETED":     proto.RspDeleted,
	"NOT_FOUND":   proto.RspNotFound,
	"NOT_STORED":  proto.RspNotStored,
	"VALUE":       proto.RspValue,
	"PONG":        proto.RspPong,
	"CLIENT_ERROR": proto.RspClientError,
	"SERVER_ERROR": proto.RspServerError,
}

// ParseResponse parses one reply out of buf's readable region, the
// mirror image of ParseRequest: used by *_test.go to verify a composed
// response round-trips back to the same Response it was built from,
// rather than by any server dispatch path. A short read restores the
// cursor and returns Incomplete, same as ParseRequest.
//
// A VALUE reply's trailing field (a raw payload or a numeric result)
// and its optional CAS token aren't self-describing on the wire, so
// the caller must set rsp.Cas and rsp.Num to what the issued command
// implies (gets/cas carry a CAS token; incrby/decrby reply with a
// number) before calling, the same way a real client already knows
// which command it sent.
func ParseResponse(rsp *proto.Response, buf *dynbuf.DynBuf) corekverr.Status {
	start := buf.ReadCursor()

	tok, st := parseBulk(buf)
	if st != corekverr.OK {
		if st != corekverr.Incomplete {
			buf.SetReadCursor(start)
		}
		return st
	}

	typ, ok := rspTokens[string(tok)]
	if !ok {
		buf.SetReadCursor(start)
		return corekverr.Invalid
	}
	rsp.Type = typ

	switch typ {
	case proto.RspClientError, proto.RspServerError:
		msg, st := parseBulk(buf)
		if st != corekverr.OK {
			buf.SetReadCursor(start)
			return st
		}
		rsp.Value = msg

	case proto.RspValue:
		key, st := parseBulk(buf)
		if st != corekverr.OK {
			buf.SetReadCursor(start)
			return st
		}
		rsp.Key = key

		flag, st := parseInteger(buf)
		if st != corekverr.OK {
			buf.SetReadCursor(start)
			return st
		}
		rsp.Flag = uint32(flag)

		// vlen is informational only when reparsing our own wire
		// format: the bulk/integer that follows is self-delimiting, so
		// it isn't needed to know where the value ends.
		if _, st := parseInteger(buf); st != corekverr.OK {
			buf.SetReadCursor(start)
			return st
		}

		if rsp.Cas {
			cas, st := parseInteger(buf)
			if st != corekverr.OK {
				buf.SetReadCursor(start)
				return st
			}
			rsp.Vcas = uint64(cas)
		}

		if rsp.Num {
			v, st := parseInteger(buf)
			if st != corekverr.OK {
				buf.SetReadCursor(start)
				return st
			}
			rsp.Vint = v
		} else {
			val, st := parseBulk(buf)
			if st != corekverr.OK {
				buf.SetReadCursor(start)
				return st
			}
			rsp.Value = val
		}
	}

	return corekverr.OK
}
