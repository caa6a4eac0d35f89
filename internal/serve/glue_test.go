package serve

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/internal/corectx"
	"github.com/corekv/corekv/internal/proto"
	"github.com/corekv/corekv/internal/slab"
	"github.com/corekv/corekv/internal/store"
)

func testCtx() *corectx.CoreContext {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return corectx.New(store.Config{
		Slab: slab.Config{
			SlabSize:     1024,
			ChunkSize:    64,
			GrowthFactor: 1.25,
			MaxBytes:     1024 * 16,
			UseFreeQ:     true,
			EvictPolicy:  slab.EvictNone,
		},
		HashPower: 4,
	}, log)
}

func TestExecuteSetThenGet(t *testing.T) {
	ctx := testCtx()
	req := &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("k")}, Value: []byte("v")}
	rsps := Execute(ctx, req)
	require.Len(t, rsps, 1)
	require.Equal(t, proto.RspStored, rsps[0].Type)

	get := &proto.Request{Type: proto.Get, Keys: [][]byte{[]byte("k")}}
	rsps = Execute(ctx, get)
	require.Len(t, rsps, 2)
	require.Equal(t, proto.RspValue, rsps[0].Type)
	require.Equal(t, "v", string(rsps[0].Value))
	require.Equal(t, proto.RspEnd, rsps[1].Type)
}

func TestExecuteGetMissYieldsOnlyEnd(t *testing.T) {
	ctx := testCtx()
	get := &proto.Request{Type: proto.Get, Keys: [][]byte{[]byte("missing")}}
	rsps := Execute(ctx, get)
	require.Len(t, rsps, 1)
	require.Equal(t, proto.RspEnd, rsps[0].Type)
}

func TestExecuteAddFailsWhenPresent(t *testing.T) {
	ctx := testCtx()
	Execute(ctx, &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("k")}, Value: []byte("v1")})
	rsps := Execute(ctx, &proto.Request{Type: proto.Add, Keys: [][]byte{[]byte("k")}, Value: []byte("v2")})
	require.Equal(t, proto.RspNotStored, rsps[0].Type)
}

func TestExecuteReplaceFailsWhenAbsent(t *testing.T) {
	ctx := testCtx()
	rsps := Execute(ctx, &proto.Request{Type: proto.Replace, Keys: [][]byte{[]byte("k")}, Value: []byte("v")})
	require.Equal(t, proto.RspNotStored, rsps[0].Type)
}

func TestExecuteDeleteReportsNotFound(t *testing.T) {
	ctx := testCtx()
	rsps := Execute(ctx, &proto.Request{Type: proto.Delete, Keys: [][]byte{[]byte("k")}})
	require.Equal(t, proto.RspNotFound, rsps[0].Type)
}

func TestExecuteDecrSaturatesAtZero(t *testing.T) {
	ctx := testCtx()
	Execute(ctx, &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("n")}, Value: []byte("5")})
	rsps := Execute(ctx, &proto.Request{Type: proto.Decr, Keys: [][]byte{[]byte("n")}, Delta: 10})
	require.Equal(t, proto.RspNumeric, rsps[0].Type)
	require.Equal(t, int64(0), rsps[0].Vint)
}

func TestExecuteIncrGrowsPastOriginalWidth(t *testing.T) {
	ctx := testCtx()
	Execute(ctx, &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("n")}, Value: []byte("9")})
	rsps := Execute(ctx, &proto.Request{Type: proto.Incr, Keys: [][]byte{[]byte("n")}, Delta: 1})
	require.Equal(t, proto.RspNumeric, rsps[0].Type)
	require.Equal(t, int64(10), rsps[0].Vint)

	get := Execute(ctx, &proto.Request{Type: proto.Get, Keys: [][]byte{[]byte("n")}})
	require.Equal(t, "10", string(get[0].Value))
}

func TestExecuteIncrOnNonNumericIsClientError(t *testing.T) {
	ctx := testCtx()
	Execute(ctx, &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("n")}, Value: []byte("abc")})
	rsps := Execute(ctx, &proto.Request{Type: proto.Incr, Keys: [][]byte{[]byte("n")}, Delta: 1})
	require.Equal(t, proto.RspClientError, rsps[0].Type)
}

func TestExecuteCasRejectsStaleToken(t *testing.T) {
	ctx := testCtx()
	Execute(ctx, &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("k")}, Value: []byte("v1")})
	rsps := Execute(ctx, &proto.Request{Type: proto.Cas, Keys: [][]byte{[]byte("k")}, Value: []byte("v2"), CasToken: 9999})
	require.Equal(t, proto.RspExists, rsps[0].Type)
}

func TestExecuteFlushExpiresEverything(t *testing.T) {
	ctx := testCtx()
	Execute(ctx, &proto.Request{Type: proto.Set, Keys: [][]byte{[]byte("k")}, Value: []byte("v")})
	Execute(ctx, &proto.Request{Type: proto.Flush})
	rsps := Execute(ctx, &proto.Request{Type: proto.Get, Keys: [][]byte{[]byte("k")}})
	require.Len(t, rsps, 1)
	require.Equal(t, proto.RspEnd, rsps[0].Type)
}

func TestExecutePingIsStandalone(t *testing.T) {
	ctx := testCtx()
	rsps := Execute(ctx, &proto.Request{Type: proto.Ping})
	require.Equal(t, proto.RspPong, rsps[0].Type)
}
