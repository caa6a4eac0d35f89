package memcache

import (
	"strconv"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

var crlf = []byte("\r\n")
var space = []byte(" ")

func writeLine(buf *dynbuf.DynBuf, parts ...[]byte) int {
	n := 0
	for i, p := range parts {
		if i > 0 {
			buf.Write(space)
			n++
		}
		buf.Write(p)
		n += len(p)
	}
	buf.Write(crlf)
	return n + crlfLen
}

// ComposeRequest composes req into buf using the memcached ASCII
// dialect. The server side only composes responses in normal
// operation; this exists so *_test.go can build a request frame and
// round-trip it through ParseRequest without hand-assembling wire
// bytes.
func ComposeRequest(buf *dynbuf.DynBuf, req *proto.Request) (int, corekverr.Status) {
	switch req.Type {
	case proto.Get, proto.Gets:
		verb := []byte("get")
		if req.Type == proto.Gets {
			verb = []byte("gets")
		}
		parts := append([][]byte{verb}, req.Keys...)
		sz := estimateLineSize(parts)
		if st := buf.CheckSize(sz); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, parts...), corekverr.OK

	case proto.Delete:
		parts := [][]byte{[]byte("delete"), req.Keys[0]}
		if req.Noreply {
			parts = append(parts, []byte("noreply"))
		}
		if st := buf.CheckSize(estimateLineSize(parts)); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, parts...), corekverr.OK

	case proto.Incr, proto.Decr:
		verb := []byte("incr")
		if req.Type == proto.Decr {
			verb = []byte("decr")
		}
		parts := [][]byte{verb, req.Keys[0], []byte(strconv.FormatUint(req.Delta, 10))}
		if req.Noreply {
			parts = append(parts, []byte("noreply"))
		}
		if st := buf.CheckSize(estimateLineSize(parts)); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, parts...), corekverr.OK

	case proto.Set, proto.Add, proto.Replace, proto.Append, proto.Prepend, proto.Cas:
		verb := storageVerb(req.Type)
		parts := [][]byte{
			verb,
			req.Keys[0],
			[]byte(strconv.FormatUint(uint64(req.Flags), 10)),
			[]byte(strconv.FormatInt(req.ExptimeSeconds, 10)),
			[]byte(strconv.Itoa(len(req.Value))),
		}
		if req.Type == proto.Cas {
			parts = append(parts, []byte(strconv.FormatUint(req.CasToken, 10)))
		}
		if req.Noreply {
			parts = append(parts, []byte("noreply"))
		}
		sz := estimateLineSize(parts) + len(req.Value) + crlfLen
		if st := buf.CheckSize(sz); !st.Ok() {
			return 0, st
		}
		n := writeLine(buf, parts...)
		buf.Write(req.Value)
		buf.Write(crlf)
		return n + len(req.Value) + crlfLen, corekverr.OK

	case proto.Flush:
		parts := [][]byte{[]byte("flush_all")}
		if req.Noreply {
			parts = append(parts, []byte("noreply"))
		}
		if st := buf.CheckSize(estimateLineSize(parts)); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, parts...), corekverr.OK

	case proto.Stats:
		if st := buf.CheckSize(8); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, []byte("stats")), corekverr.OK

	case proto.Ping:
		if st := buf.CheckSize(8); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, []byte("ping")), corekverr.OK

	case proto.Quit:
		if st := buf.CheckSize(8); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, []byte("quit")), corekverr.OK
	}

	return 0, corekverr.Invalid
}

func storageVerb(t proto.RequestType) []byte {
	switch t {
	case proto.Set:
		return []byte("set")
	case proto.Add:
		return []byte("add")
	case proto.Replace:
		return []byte("replace")
	case proto.Append:
		return []byte("append")
	case proto.Prepend:
		return []byte("prepend")
	case proto.Cas:
		return []byte("cas")
	}
	return nil
}

func estimateLineSize(parts [][]byte) int {
	n := crlfLen
	for _, p := range parts {
		n += len(p) + 1
	}
	return n
}

var rspLines = map[proto.ResponseType]string{
	proto.RspStored:    "STORED",
	proto.RspNotStored: "NOT_STORED",
	proto.RspExists:    "EXISTS",
	proto.RspNotFound:  "NOT_FOUND",
	proto.RspDeleted:   "DELETED",
	proto.RspOK:        "OK",
	proto.RspEnd:       "END",
	proto.RspPong:      "PONG",
}

// ComposeResponse composes rsp into buf using the memcached ASCII
// dialect. Multi-VALUE replies are composed one Response at a time by
// the caller (one RspValue per item, followed by a final RspEnd), the
// way twemcache streams get/gets replies key by key rather than
// buffering the whole batch.
func ComposeResponse(buf *dynbuf.DynBuf, rsp *proto.Response) (int, corekverr.Status) {
	if line, ok := rspLines[rsp.Type]; ok {
		if st := buf.CheckSize(len(line) + crlfLen); !st.Ok() {
			return 0, st
		}
		buf.Write([]byte(line))
		buf.Write(crlf)
		return len(line) + crlfLen, corekverr.OK
	}

	switch rsp.Type {
	case proto.RspClientError, proto.RspServerError:
		prefix := "CLIENT_ERROR"
		if rsp.Type == proto.RspServerError {
			prefix = "SERVER_ERROR"
		}
		if st := buf.CheckSize(len(prefix) + 1 + len(rsp.Value) + crlfLen); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, []byte(prefix), rsp.Value), corekverr.OK

	case proto.RspNumeric:
		s := strconv.FormatInt(rsp.Vint, 10)
		if st := buf.CheckSize(len(s) + crlfLen); !st.Ok() {
			return 0, st
		}
		buf.Write([]byte(s))
		buf.Write(crlf)
		return len(s) + crlfLen, corekverr.OK

	case proto.RspValue:
		flagStr := []byte(strconv.FormatUint(uint64(rsp.Flag), 10))
		lenStr := []byte(strconv.Itoa(len(rsp.Value)))
		parts := [][]byte{[]byte("VALUE"), rsp.Key, flagStr, lenStr}
		var casStr []byte
		if rsp.Cas {
			casStr = []byte(strconv.FormatUint(rsp.Vcas, 10))
			parts = append(parts, casStr)
		}
		sz := estimateLineSize(parts) + len(rsp.Value) + crlfLen
		if st := buf.CheckSize(sz); !st.Ok() {
			return 0, st
		}
		n := writeLine(buf, parts...)
		buf.Write(rsp.Value)
		buf.Write(crlf)
		return n + len(rsp.Value) + crlfLen, corekverr.OK

	case proto.RspStat:
		parts := [][]byte{[]byte("STAT"), rsp.StatName, rsp.StatValue}
		if st := buf.CheckSize(estimateLineSize(parts)); !st.Ok() {
			return 0, st
		}
		return writeLine(buf, parts...), corekverr.OK
	}

	return 0, corekverr.Invalid
}
