package serve

import (
	"errors"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/corekv/corekv/internal/corectx"
	"github.com/corekv/corekv/internal/corekverr"
	"github.com/corekv/corekv/internal/dynbuf"
	"github.com/corekv/corekv/internal/proto"
)

// Codec is the pair of functions a wire dialect supplies: a request
// parser and a response composer, both operating incrementally
// against a DynBuf exactly as internal/proto/resp, internal/proto/memcache
// and internal/proto/ping each already do. Plugging in a Codec is how
// one connection loop serves three distinct wire dialects.
type Codec struct {
	Name           string
	ParseRequest   func(req *proto.Request, buf *dynbuf.DynBuf) corekverr.Status
	ComposeResponse func(buf *dynbuf.DynBuf, rsp *proto.Response) (int, corekverr.Status)
}

// readBufSize is how much is read off the socket per Read(2) call.
const readBufSize = 4096

// DynBufConfig carries the buf_init_size/dbuf_max_power configuration
// options down to each connection's pair of DynBufs.
type DynBufConfig struct {
	InitSize int
	MaxPower int
}

func (c DynBufConfig) sizes() (initSize, maxSize int) {
	initSize = c.InitSize
	if initSize <= 0 {
		initSize = dynbuf.DefaultInitSize
	}
	if c.MaxPower <= 0 {
		return initSize, 0
	}
	return initSize, initSize << uint(c.MaxPower)
}

// serveConn owns one connection end to end: reading bytes into its
// own DynBuf, parsing frames, submitting them to the shared
// Dispatcher, and writing composed responses back out. Nothing here
// is shared with any other connection, mirroring go-fuse's one
// request-buffer-per-reader-goroutine model, generalized from a pool
// of fixed buffers to one growable DynBuf per connection.
func serveConn(conn net.Conn, codec Codec, ctx *corectx.CoreContext, disp *Dispatcher, bufCfg DynBufConfig) {
	defer conn.Close()

	initSize, maxSize := bufCfg.sizes()
	in := dynbuf.New(initSize, maxSize)
	out := dynbuf.New(initSize, maxSize)
	req := &proto.Request{}

	entry := ctx.Log.WithFields(logrus.Fields{
		"codec":  codec.Name,
		"remote": conn.RemoteAddr().String(),
	})

	for {
		if err := fill(conn, in); err != nil {
			if !errors.Is(err, io.EOF) {
				entry.WithError(err).Debug("connection read failed")
			}
			return
		}

		for {
			req.Reset()
			st := codec.ParseRequest(req, in)
			if st == corekverr.Incomplete {
				in.Compact()
				break
			}
			if !st.Ok() {
				ctx.Metrics.IncrError(st)
				entry.WithField("status", st.String()).Debug("malformed frame, closing connection")
				return
			}

			if req.Type == proto.Quit {
				return
			}

			rsps := disp.Submit(req)
			for _, rsp := range rsps {
				if st := responseStatus(rsp.Type); st != corekverr.OK {
					ctx.Metrics.IncrError(st)
				}
			}
			if req.Noreply {
				continue
			}
			for _, rsp := range rsps {
				if _, st := codec.ComposeResponse(out, rsp); !st.Ok() {
					entry.WithField("status", st.String()).Warn("failed to compose response")
					return
				}
			}
			if err := flush(conn, out); err != nil {
				entry.WithError(err).Debug("connection write failed")
				return
			}
		}
	}
}

// responseStatus maps a composed Response's type back to the status
// it represents, so the dispatch loop can feed metrics.Collector the
// "every error increments a metric counter" bookkeeping without the
// Execute layer threading a parallel Status value alongside every
// Response.
func responseStatus(t proto.ResponseType) corekverr.Status {
	switch t {
	case proto.RspNotFound:
		return corekverr.NotFound
	case proto.RspNotStored:
		return corekverr.NotStored
	case proto.RspExists:
		return corekverr.Exists
	case proto.RspClientError:
		return corekverr.Invalid
	case proto.RspServerError:
		return corekverr.NoMem
	default:
		return corekverr.OK
	}
}

// fill reads at least one chunk of fresh bytes into buf's writable
// region, growing it first if it's already full.
func fill(conn net.Conn, buf *dynbuf.DynBuf) error {
	if buf.WritableSize() < readBufSize {
		if st := buf.CheckSize(readBufSize); !st.Ok() {
			return st
		}
	}
	n, err := conn.Read(buf.Writable()[:readBufSize])
	if n > 0 {
		buf.Produced(n)
	}
	if err != nil {
		return err
	}
	return nil
}

// flush writes out's entire readable region to conn and resets it for
// reuse.
func flush(conn net.Conn, buf *dynbuf.DynBuf) error {
	for buf.ReadableSize() > 0 {
		n, err := conn.Write(buf.Readable())
		if err != nil {
			return err
		}
		buf.Advance(n)
	}
	buf.Reset()
	return nil
}
