package resp

import (
	"strconv"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

// Upper-bound digit widths used to pre-size writes before they
// happen, mirroring redis/compose.c's CC_UINT64_MAXLEN /
// CC_UINT32_MAXLEN over-estimation strategy: a small amount of
// wasted buffer capacity is accepted in exchange for code that never
// has to compute an exact size before writing.
const (
	uint64MaxLen = 20
	uint32MaxLen = 10
	int64MaxLen  = uint64MaxLen + 1
)

var reqStrings = map[proto.RequestType]string{
	proto.Get:    "get",
	proto.MGet:   "mget",
	proto.Set:    "set",
	proto.Delete: "delete",
	proto.Incr:   "incrby",
	proto.Decr:   "decrby",
	proto.Flush:  "flush",
	proto.Quit:   "quit",
}

var rspStrings = map[proto.ResponseType]string{
	proto.RspOK:        "OK",
	proto.RspEnd:       "END",
	proto.RspStored:    "STORED",
	proto.RspExists:    "EXISTS",
	proto.RspDeleted:   "DELETED",
	proto.RspNotFound:  "NOT_FOUND",
	proto.RspNotStored: "NOT_STORED",
	proto.RspValue:       "VALUE",
	proto.RspPong:        "PONG",
	proto.RspClientError: "CLIENT_ERROR",
	proto.RspServerError: "SERVER_ERROR",
}

func writeBulk(buf *dynbuf.DynBuf, s []byte) int {
	n := writeBulkHeader(buf, len(s))
	buf.Write(s)
	buf.Write(crlf)
	return n + len(s) + crlfLen
}

var crlf = []byte("\r\n")

func writeBulkHeader(buf *dynbuf.DynBuf, length int) int {
	head := "$" + strconv.Itoa(length) + "\r\n"
	buf.Write([]byte(head))
	return len(head)
}

func writeBulkString(buf *dynbuf.DynBuf, s string) int {
	return writeBulk(buf, []byte(s))
}

func writeSimple(buf *dynbuf.DynBuf, s []byte, prefix byte) int {
	buf.Write([]byte{prefix})
	buf.Write(s)
	buf.Write(crlf)
	return 1 + len(s) + crlfLen
}

func writeI64(buf *dynbuf.DynBuf, v int64) int {
	line := ":" + strconv.FormatInt(v, 10) + "\r\n"
	buf.Write([]byte(line))
	return len(line)
}

func writeLength(buf *dynbuf.DynBuf, v int) int {
	line := "*" + strconv.Itoa(v) + "\r\n"
	buf.Write([]byte(line))
	return len(line)
}

// ComposeRequest composes req into buf using the RESP dialect. It
// pre-sizes buf via
// CheckSize before writing, the way _check_buf_size does in
// redis/compose.c, using the same over-estimated upper bounds.
func ComposeRequest(buf *dynbuf.DynBuf, req *proto.Request) (int, corekverr.Status) {
	str := reqStrings[req.Type]

	switch req.Type {
	case proto.Flush, proto.Quit:
		if st := buf.CheckSize(1 + uint64MaxLen + crlfLen + len(str) + crlfLen); !st.Ok() {
			return 0, st
		}
		return writeBulkString(buf, str), corekverr.OK

	case proto.Get, proto.MGet, proto.Delete:
		sz := 0
		for _, k := range req.Keys {
			sz += 1 + uint64MaxLen + crlfLen + len(k) + crlfLen
		}
		overhead := (1 + uint64MaxLen + crlfLen) + (1 + uint64MaxLen + crlfLen + len(str) + crlfLen) + sz
		if st := buf.CheckSize(overhead); !st.Ok() {
			return 0, st
		}
		n := writeLength(buf, 1+len(req.Keys))
		n += writeBulkString(buf, str)
		for _, k := range req.Keys {
			n += writeBulk(buf, k)
		}
		return n, corekverr.OK

	case proto.Incr, proto.Decr:
		key := req.Keys[0]
		deltaStr := strconv.FormatUint(req.Delta, 10)
		overhead := (1 + uint32MaxLen + crlfLen) +
			(1 + uint64MaxLen + crlfLen + len(str) + crlfLen) +
			(1 + uint64MaxLen + crlfLen + len(key) + crlfLen) +
			(1 + uint64MaxLen + crlfLen + len(deltaStr) + crlfLen)
		if st := buf.CheckSize(overhead); !st.Ok() {
			return 0, st
		}
		n := writeLength(buf, 2+len(req.Keys)) // command + key + delta
		n += writeBulkString(buf, str)
		n += writeBulk(buf, key)
		n += writeBulkString(buf, deltaStr)
		return n, corekverr.OK

	case proto.Set:
		key := req.Keys[0]
		overhead := (1 + uint32MaxLen + crlfLen) +
			(1 + uint64MaxLen + crlfLen + len(str) + crlfLen) +
			(1 + uint64MaxLen + crlfLen + len(key) + crlfLen) +
			(1 + uint64MaxLen + crlfLen + len(req.Value) + crlfLen)
		if st := buf.CheckSize(overhead); !st.Ok() {
			return 0, st
		}
		n := writeLength(buf, 2+len(req.Keys)) // command + key + value
		n += writeBulkString(buf, str)
		n += writeBulk(buf, key)
		n += writeBulk(buf, req.Value)
		return n, corekverr.OK
	}

	return 0, corekverr.Invalid
}

// ComposeResponse composes rsp into buf using the RESP dialect. Every
// field is written as a bulk string or integer — never wrapped in an
// outer array, matching compose.c's compose_rsp (which writes a flat
// sequence of fields rather than an array-framed reply).
func ComposeResponse(buf *dynbuf.DynBuf, rsp *proto.Response) (int, corekverr.Status) {
	str := rspStrings[rsp.Type]

	switch rsp.Type {
	case proto.RspOK, proto.RspEnd, proto.RspStored, proto.RspExists,
		proto.RspDeleted, proto.RspNotFound, proto.RspNotStored, proto.RspPong:
		if st := buf.CheckSize(1 + uint64MaxLen + crlfLen + len(str) + crlfLen); !st.Ok() {
			return 0, st
		}
		return writeBulkString(buf, str), corekverr.OK

	case proto.RspClientError, proto.RspServerError:
		if st := buf.CheckSize(len(str) + len(rsp.Value) + crlfLen*2 + 2*(1+uint64MaxLen)); !st.Ok() {
			return 0, st
		}
		n := writeBulkString(buf, str)
		n += writeBulk(buf, rsp.Value)
		return n, corekverr.OK

	case proto.RspNumeric:
		if st := buf.CheckSize(uint64MaxLen + crlfLen); !st.Ok() {
			return 0, st
		}
		return writeI64(buf, rsp.Vint), corekverr.OK

	case proto.RspValue:
		var vlen int
		if rsp.Num {
			vlen = len(strconv.FormatInt(rsp.Vint, 10))
		} else {
			vlen = len(rsp.Value)
		}
		overhead := len(str) + len(rsp.Key) + uint32MaxLen*2 + vlen + crlfLen*2 +
			3*(1+uint64MaxLen+crlfLen)
		if st := buf.CheckSize(overhead); !st.Ok() {
			return 0, st
		}
		n := writeBulkString(buf, str)
		n += writeBulk(buf, rsp.Key)
		n += writeI64(buf, int64(rsp.Flag))
		n += writeI64(buf, int64(vlen))
		if rsp.Cas {
			n += writeI64(buf, int64(rsp.Vcas))
		}
		if rsp.Num {
			n += writeI64(buf, rsp.Vint)
		} else {
			n += writeBulk(buf, rsp.Value)
		}
		return n, corekverr.OK
	}

	return 0, corekverr.Invalid
}

var _ = writeSimple // kept for symmetry with compose.c's _write_string/_write_error; nothing in the package calls it.
