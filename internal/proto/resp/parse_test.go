package resp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

func TestParseRequestQuitUnwrapped(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("$4\r\nquit\r\n")).Ok())

	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.True(t, st.Ok())
	require.Equal(t, proto.Quit, req.Type)
	require.Equal(t, 0, buf.ReadableSize())
}

func TestParseRequestGetWrappedInArray(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("*2\r\n$3\r\nget\r\n$3\r\nfoo\r\n")).Ok())

	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.True(t, st.Ok())
	require.Equal(t, proto.Get, req.Type)
	require.Equal(t, [][]byte{[]byte("foo")}, req.Keys)
}

func TestParseRequestSetTwoPhase(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("*3\r\n$3\r\nset\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")).Ok())

	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.True(t, st.Ok())
	require.Equal(t, proto.Set, req.Type)
	require.Equal(t, "foo", string(req.Keys[0]))
	require.Equal(t, "bar", string(req.Value))
}

func TestParseRequestIncompletePrefixLeavesCursorUnchanged(t *testing.T) {
	full := "*2\r\n$3\r\nget\r\n$3\r\nfoo\r\n"
	for i := 0; i < len(full); i++ {
		buf := dynbuf.New(64, 4096)
		require.True(t, buf.Write([]byte(full[:i])).Ok())

		var req proto.Request
		req.Reset()
		st := ParseRequest(&req, buf)
		require.Equal(t, corekverr.Incomplete, st, "prefix length %d", i)
		require.Equal(t, 0, buf.ReadCursor(), "prefix length %d must not move read cursor", i)
		require.Equal(t, i, buf.ReadableSize())
	}
}

func TestParseRequestInvalidCommandRestoresCursor(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("$7\r\nbogus12\r\n")).Ok())

	before := buf.ReadCursor()
	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.Equal(t, corekverr.Invalid, st)
	require.Equal(t, before, buf.ReadCursor())
}

func TestParseRequestDelete(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("*2\r\n$6\r\ndelete\r\n$1\r\nk\r\n")).Ok())

	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.True(t, st.Ok())
	require.Equal(t, proto.Delete, req.Type)
	require.Equal(t, "k", string(req.Keys[0]))
}

func TestParseRequestIncrBy(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("*3\r\n$6\r\nincrby\r\n$3\r\nctr\r\n$2\r\n10\r\n")).Ok())

	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.True(t, st.Ok())
	require.Equal(t, proto.Incr, req.Type)
	require.Equal(t, "ctr", string(req.Keys[0]))
	require.Equal(t, uint64(10), req.Delta)
}

func TestComposeRequestGetRoundTrips(t *testing.T) {
	req := &proto.Request{Type: proto.Get, Keys: [][]byte{[]byte("foo")}}
	buf := dynbuf.New(64, 4096)
	n, st := ComposeRequest(buf, req)
	require.True(t, st.Ok())
	require.Equal(t, n, buf.ReadableSize())
	require.Equal(t, "*2\r\n$3\r\nget\r\n$3\r\nfoo\r\n", string(buf.Readable()))

	var reparsed proto.Request
	reparsed.Reset()
	require.True(t, ParseRequest(&reparsed, buf).Ok())
	require.Equal(t, proto.Get, reparsed.Type)
	require.Equal(t, "foo", string(reparsed.Keys[0]))
}

func TestComposeRequestQuitUnwrapped(t *testing.T) {
	req := &proto.Request{Type: proto.Quit}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeRequest(buf, req)
	require.True(t, st.Ok())
	require.Equal(t, "$4\r\nquit\r\n", string(buf.Readable()))
}

func TestComposeResponseValueRoundTrips(t *testing.T) {
	rsp := &proto.Response{
		Type:  proto.RspValue,
		Key:   []byte("foo"),
		Value: []byte("bar"),
		Flag:  7,
	}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeResponse(buf, rsp)
	require.True(t, st.Ok())

	var reparsed proto.Response
	reparsed.Reset()
	st = ParseResponse(&reparsed, buf)
	require.True(t, st.Ok())
	require.Equal(t, proto.RspValue, reparsed.Type)
	require.Equal(t, "foo", string(reparsed.Key))
	require.Equal(t, "bar", string(reparsed.Value))
	require.Equal(t, uint32(7), reparsed.Flag)
}

func TestComposeResponseStoredRoundTrips(t *testing.T) {
	rsp := &proto.Response{Type: proto.RspStored}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeResponse(buf, rsp)
	require.True(t, st.Ok())
	require.Equal(t, "$6\r\nSTORED\r\n", string(buf.Readable()))

	var reparsed proto.Response
	reparsed.Reset()
	require.True(t, ParseResponse(&reparsed, buf).Ok())
	require.Equal(t, proto.RspStored, reparsed.Type)
}
