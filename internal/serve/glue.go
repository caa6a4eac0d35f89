// Package serve is the glue layer: it turns a parsed proto.Request
// into one or more store operations and the proto.Response(s) that
// report their outcome, the same role server.go's handleRequest plays
// between a parsed fuse request and the RawFileSystem backend it
// dispatches into.
package serve

import (
	"github.com/corekv/corekv/internal/corectx"
	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/proto"
)

// thirtyDays is the memcached convention's cutoff between a relative
// and an absolute exptime: values at or below it are seconds from now,
// larger values are already a Unix timestamp.
const thirtyDays = 60 * 60 * 24 * 30

func absoluteExpiry(now, exptime int64) int64 {
	switch {
	case exptime == 0:
		return 0
	case exptime < 0:
		return now - 1 // already expired
	case exptime <= thirtyDays:
		return now + exptime
	default:
		return exptime
	}
}

// Execute runs req against ctx.Store and returns the Response(s) that
// should be composed back to the client, in order. GET/MGET/GETS
// yield one RspValue per found key followed by a trailing RspEnd;
// every other verb yields exactly one Response.
func Execute(ctx *corectx.CoreContext, req *proto.Request) []*proto.Response {
	switch req.Type {
	case proto.Get, proto.MGet, proto.Gets:
		return execRetrieve(ctx, req)
	case proto.Set:
		return []*proto.Response{execSet(ctx, req)}
	case proto.Add:
		return []*proto.Response{execAddReplace(ctx, req, false)}
	case proto.Replace:
		return []*proto.Response{execAddReplace(ctx, req, true)}
	case proto.Append:
		return []*proto.Response{execAnnex(ctx, req, true)}
	case proto.Prepend:
		return []*proto.Response{execAnnex(ctx, req, false)}
	case proto.Cas:
		return []*proto.Response{execCas(ctx, req)}
	case proto.Delete:
		return []*proto.Response{execDelete(ctx, req)}
	case proto.Incr:
		return []*proto.Response{execArith(ctx, req, true)}
	case proto.Decr:
		return []*proto.Response{execArith(ctx, req, false)}
	case proto.Flush:
		ctx.Store.Flush()
		ctx.Log.Debug("flush_all")
		return []*proto.Response{{Type: proto.RspOK}}
	case proto.Stats:
		return execStats(ctx)
	case proto.Ping:
		return []*proto.Response{{Type: proto.RspPong}}
	default:
		return []*proto.Response{clientErrorResponse("unknown command")}
	}
}

func clientErrorResponse(msg string) *proto.Response {
	return &proto.Response{Type: proto.RspClientError, Value: []byte(msg)}
}

func serverErrorResponse(st corekverr.Status) *proto.Response {
	msg := st.String()
	if st == corekverr.NoMem {
		msg = "out of memory"
	}
	return &proto.Response{Type: proto.RspServerError, Value: []byte(msg)}
}

func execRetrieve(ctx *corectx.CoreContext, req *proto.Request) []*proto.Response {
	out := make([]*proto.Response, 0, len(req.Keys)+1)
	for _, key := range req.Keys {
		it, ok := ctx.Store.Get(key)
		if !ok {
			continue
		}
		val := append([]byte(nil), it.Value()...)
		out = append(out, &proto.Response{
			Type:  proto.RspValue,
			Key:   append([]byte(nil), key...),
			Value: val,
			Flag:  it.Dataflag,
			Cas:   req.Type == proto.Gets,
			Vcas:  it.Cas,
		})
	}
	out = append(out, &proto.Response{Type: proto.RspEnd})
	return out
}

func execSet(ctx *corectx.CoreContext, req *proto.Request) *proto.Response {
	key := req.Keys[0]
	expireAt := absoluteExpiry(ctx.Store.Now(), req.ExptimeSeconds)
	_, st := ctx.Store.Set(key, req.Value, req.Flags, expireAt)
	if st != corekverr.OK {
		return storeStatusResponse(st)
	}
	return &proto.Response{Type: proto.RspStored}
}

// execAddReplace implements "add" (requirePresent=false: succeeds
// only when the key is absent) and "replace" (requirePresent=true:
// succeeds only when the key is already present).
func execAddReplace(ctx *corectx.CoreContext, req *proto.Request, requirePresent bool) *proto.Response {
	key := req.Keys[0]
	_, exists := ctx.Store.Get(key)
	if exists != requirePresent {
		return &proto.Response{Type: proto.RspNotStored}
	}
	expireAt := absoluteExpiry(ctx.Store.Now(), req.ExptimeSeconds)
	_, st := ctx.Store.Set(key, req.Value, req.Flags, expireAt)
	if st != corekverr.OK {
		return storeStatusResponse(st)
	}
	return &proto.Response{Type: proto.RspStored}
}

func execCas(ctx *corectx.CoreContext, req *proto.Request) *proto.Response {
	key := req.Keys[0]
	it, exists := ctx.Store.Get(key)
	if !exists {
		return &proto.Response{Type: proto.RspNotFound}
	}
	if it.Cas != req.CasToken {
		return &proto.Response{Type: proto.RspExists}
	}
	expireAt := absoluteExpiry(ctx.Store.Now(), req.ExptimeSeconds)
	_, st := ctx.Store.Set(key, req.Value, req.Flags, expireAt)
	if st != corekverr.OK {
		return storeStatusResponse(st)
	}
	return &proto.Response{Type: proto.RspStored}
}

func execAnnex(ctx *corectx.CoreContext, req *proto.Request, isAppend bool) *proto.Response {
	key := req.Keys[0]
	it, exists := ctx.Store.Get(key)
	if !exists {
		return &proto.Response{Type: proto.RspNotStored}
	}
	_, st := ctx.Store.Annex(it, req.Value, isAppend)
	if st != corekverr.OK {
		return storeStatusResponse(st)
	}
	return &proto.Response{Type: proto.RspStored}
}

func execDelete(ctx *corectx.CoreContext, req *proto.Request) *proto.Response {
	if ctx.Store.Delete(req.Keys[0]) {
		return &proto.Response{Type: proto.RspDeleted}
	}
	return &proto.Response{Type: proto.RspNotFound}
}

// execArith implements incr/decr: the stored value must already be a
// decimal integer (memcached's own constraint). Underflow saturates
// at 0; overflow wraps at 2^64, both per the adopted convention for
// counters without a distinct bignum type.
func execArith(ctx *corectx.CoreContext, req *proto.Request, isIncr bool) *proto.Response {
	key := req.Keys[0]
	it, exists := ctx.Store.Get(key)
	if !exists {
		return &proto.Response{Type: proto.RspNotFound}
	}
	cur, ok := parseCounter(it.Value())
	if !ok {
		return clientErrorResponse("cannot increment or decrement non-numeric value")
	}

	var next uint64
	if isIncr {
		next = cur + req.Delta // wraps at 2^64 on overflow
	} else if req.Delta > cur {
		next = 0 // saturate
	} else {
		next = cur - req.Delta
	}

	buf := formatCounter(next)
	// Set, not Update: the formatted counter may be longer than the
	// original value (e.g. "9" -> "10"), which can outgrow the
	// existing item's slab class.
	_, st := ctx.Store.Set(key, buf, it.Dataflag, it.ExpireAt)
	if st != corekverr.OK {
		return storeStatusResponse(st)
	}
	return &proto.Response{Type: proto.RspNumeric, Num: true, Vint: int64(next)}
}

func execStats(ctx *corectx.CoreContext) []*proto.Response {
	stats := ctx.Store.Stats()
	out := []*proto.Response{
		statResponse("curr_items", string(formatCounter(uint64(stats.ItemCurr)))),
		statResponse("total_items", string(formatCounter(stats.ItemInsert))),
		statResponse("bytes", string(formatCounter(uint64(stats.KeyValBytes)))),
	}
	out = append(out, &proto.Response{Type: proto.RspEnd})
	return out
}

func statResponse(name, value string) *proto.Response {
	return &proto.Response{Type: proto.RspStat, StatName: []byte(name), StatValue: []byte(value)}
}

// storeStatusResponse translates a corekverr.Status returned by the
// store layer into a client-visible Response, per the error taxonomy:
// Oversized is the client's fault (the value it sent doesn't fit any
// class); NoMem and anything else unexpected is the server's.
func storeStatusResponse(st corekverr.Status) *proto.Response {
	if st == corekverr.Oversized {
		return clientErrorResponse("object too large for cache")
	}
	return serverErrorResponse(st)
}

func parseCounter(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

func formatCounter(n uint64) []byte {
	if n == 0 {
		return []byte("0")
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return buf[i:]
}
