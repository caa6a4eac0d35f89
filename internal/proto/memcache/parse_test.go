package memcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

func TestParseRequestGetSingleKey(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("get foo\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Get, req.Type)
	require.Equal(t, "foo", string(req.Keys[0]))
}

func TestParseRequestGetMultiKey(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("get foo bar baz\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Get, req.Type)
	require.Len(t, req.Keys, 3)
	require.Equal(t, "baz", string(req.Keys[2]))
}

func TestParseRequestSetTwoPhase(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("set foo 0 0 3\r\nbar\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Set, req.Type)
	require.Equal(t, "foo", string(req.Keys[0]))
	require.Equal(t, "bar", string(req.Value))
	require.Equal(t, 0, buf.ReadableSize())
}

func TestParseRequestSetSuspendsOnShortValue(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("set foo 0 0 3\r\nba")).Ok())

	var req proto.Request
	req.Reset()
	st := ParseRequest(&req, buf)
	require.Equal(t, corekverr.Incomplete, st)
	require.Equal(t, proto.StateHdr, req.PState, "a short value restarts the frame from its command line")
	require.Equal(t, 0, buf.ReadCursor())

	require.True(t, buf.Write([]byte("r\r\n")).Ok())
	st = ParseRequest(&req, buf)
	require.True(t, st.Ok())
	require.Equal(t, "bar", string(req.Value))
}

func TestParseRequestSetWithNoreply(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("set foo 0 0 3 noreply\r\nbar\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.True(t, req.Noreply)
}

func TestParseRequestCasRequiresCasToken(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("cas foo 0 0 3 42\r\nbar\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Cas, req.Type)
	require.Equal(t, uint64(42), req.CasToken)
}

func TestParseRequestIncr(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("incr ctr 5\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Incr, req.Type)
	require.Equal(t, uint64(5), req.Delta)
}

func TestParseRequestDeleteAndQuit(t *testing.T) {
	buf := dynbuf.New(64, 4096)
	require.True(t, buf.Write([]byte("delete foo\r\nquit\r\n")).Ok())

	var req proto.Request
	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Delete, req.Type)

	req.Reset()
	require.True(t, ParseRequest(&req, buf).Ok())
	require.Equal(t, proto.Quit, req.Type)
}

func TestParseRequestIncompletePrefixLeavesCursorUnchanged(t *testing.T) {
	// Only HDR-phase prefixes (up to and excluding the line's trailing
	// CRLF) are checked here; a short value is covered by
	// TestParseRequestSetSuspendsOnShortValue.
	full := "set foo 0 0 3\r\n"
	for i := 0; i < len(full); i++ {
		buf := dynbuf.New(64, 4096)
		require.True(t, buf.Write([]byte(full[:i])).Ok())

		var req proto.Request
		req.Reset()
		st := ParseRequest(&req, buf)
		require.Equal(t, corekverr.Incomplete, st, "prefix length %d", i)
		require.Equal(t, 0, buf.ReadCursor(), "prefix length %d must not move read cursor", i)
	}
}

func TestComposeRequestSetRoundTrips(t *testing.T) {
	req := &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("foo")}, Value: []byte("bar"), Flags: 9}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeRequest(buf, req)
	require.True(t, st.Ok())
	require.Equal(t, "set foo 9 0 3\r\nbar\r\n", string(buf.Readable()))

	var reparsed proto.Request
	reparsed.Reset()
	require.True(t, ParseRequest(&reparsed, buf).Ok())
	require.Equal(t, "foo", string(reparsed.Keys[0]))
	require.Equal(t, "bar", string(reparsed.Value))
	require.Equal(t, uint32(9), reparsed.Flags)
}

func TestComposeResponseValueRoundTrips(t *testing.T) {
	rsp := &proto.Response{Type: proto.RspValue, Key: []byte("foo"), Value: []byte("bar"), Flag: 3}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeResponse(buf, rsp)
	require.True(t, st.Ok())
	require.Equal(t, "VALUE foo 3 3\r\nbar\r\n", string(buf.Readable()))

	var reparsed proto.Response
	reparsed.Reset()
	require.True(t, ParseResponse(&reparsed, buf).Ok())
	require.Equal(t, "foo", string(reparsed.Key))
	require.Equal(t, "bar", string(reparsed.Value))
	require.Equal(t, uint32(3), reparsed.Flag)
}

func TestComposeResponseStoredRoundTrips(t *testing.T) {
	rsp := &proto.Response{Type: proto.RspStored}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeResponse(buf, rsp)
	require.True(t, st.Ok())
	require.Equal(t, "STORED\r\n", string(buf.Readable()))
}

func TestComposeResponseClientError(t *testing.T) {
	rsp := &proto.Response{Type: proto.RspClientError, Value: []byte("bad command line format")}
	buf := dynbuf.New(64, 4096)
	_, st := ComposeResponse(buf, rsp)
	require.True(t, st.Ok())
	require.Equal(t, "CLIENT_ERROR bad command line format\r\n", string(buf.Readable()))
}
