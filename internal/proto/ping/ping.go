// Package ping implements a third, minimal wire dialect used for
// liveness checks: a bare "PING\r\n" request answered by "PONG\r\n",
// with no keys, no payload and no state machine beyond
// find-the-terminator. It mirrors the parse/compose split of the
// resp and memcache packages at far smaller scope, the same relation
// original_source's protocol/data/ping/parse.h bears to the redis and
// memcache dialects: present as a lightweight third citizen of the
// protocol layer, not a special case bolted onto the others.
package ping

import (
	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

var (
	reqLine = []byte("PING\r\n")
	rspLine = []byte("PONG\r\n")
)

// ParseRequest recognizes a literal "PING\r\n" request. A prefix of it
// is Incomplete; anything else is Invalid. On any non-OK status the
// read cursor is left unchanged.
func ParseRequest(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status {
	readable := buf.Readable()
	n := len(reqLine)
	if len(readable) < n {
		if matchesPrefix(readable, reqLine) {
			return corekverr.Incomplete
		}
		return corekverr.Invalid
	}
	if !matchesPrefix(readable[:n], reqLine) {
		return corekverr.Invalid
	}
	buf.Advance(n)
	req.Type = proto.Ping
	req.RState = proto.Parsed
	return corekverr.OK
}

// ComposeResponse writes the "PONG\r\n" reply. rsp.Type is expected to
// be proto.RspPong; any other type is a programmer error in the
// caller's dispatch and is reported as Invalid rather than silently
// composing the wrong line.
func ComposeResponse(buf *dynbuf.DynBuf, rsp *proto.Response) (int, corekverr.Status) {
	if rsp.Type != proto.RspPong {
		return 0, corekverr.Invalid
	}
	if st := buf.CheckSize(len(rspLine)); !st.Ok() {
		return 0, st
	}
	buf.Write(rspLine)
	return len(rspLine), corekverr.OK
}

// ComposeRequest writes the "PING\r\n" line. The server's own dispatch
// path never calls this; it exists so *_test.go can build a request
// frame and round-trip it through ParseRequest without hand-assembling
// wire bytes.
func ComposeRequest(buf *dynbuf.DynBuf, req *proto.Request) (int, corekverr.Status) {
	if req.Type != proto.Ping {
		return 0, corekverr.Invalid
	}
	if st := buf.CheckSize(len(reqLine)); !st.Ok() {
		return 0, st
	}
	buf.Write(reqLine)
	return len(reqLine), corekverr.OK
}

func matchesPrefix(have, want []byte) bool {
	for i := range have {
		if have[i] != want[i] {
			return false
		}
	}
	return true
}
