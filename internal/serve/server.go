package serve

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/corekv/corekv/internal/corectx"
	"github.com/corekv/corekv/internal/proto/memcache"
	"github.com/corekv/corekv/internal/proto/ping"
	"github.com/corekv/corekv/internal/proto/resp"
)

// Listeners names the TCP addresses each wire dialect is served on.
// A zero-value field leaves that dialect unserved.
type Listeners struct {
	RESP     string
	Memcache string
	Ping     string
}

// Server owns the set of dialect listeners and the single Dispatcher
// all of their connections funnel through.
type Server struct {
	ctx       *corectx.CoreContext
	listeners Listeners
	log       *logrus.Logger
	bufCfg    DynBufConfig
}

// New builds a Server. Connections are not accepted until Serve runs.
// A zero-value DynBufConfig falls back to dynbuf's own defaults.
func New(ctx *corectx.CoreContext, listeners Listeners, bufCfg DynBufConfig) *Server {
	return &Server{ctx: ctx, listeners: listeners, log: ctx.Log, bufCfg: bufCfg}
}

var dialectCodecs = map[string]Codec{
	"resp": {
		Name:            "resp",
		ParseRequest:    resp.ParseRequest,
		ComposeResponse: resp.ComposeResponse,
	},
	"memcache": {
		Name:            "memcache",
		ParseRequest:    memcache.ParseRequest,
		ComposeResponse: memcache.ComposeResponse,
	},
	"ping": {
		Name:            "ping",
		ParseRequest:    ping.ParseRequest,
		ComposeResponse: ping.ComposeResponse,
	},
}

// Serve starts a listener per configured dialect and blocks until ctx
// is canceled or any accept loop returns a fatal error, at which point
// every other listener is torn down too — the same first-error-wins
// supervision an errgroup gives a set of sibling goroutines, used here
// in place of go-fuse's single-device read loop since corekv serves
// three independent sockets instead of one device fd.
func (s *Server) Serve(ctx context.Context) error {
	disp := NewDispatcher(s.ctx)
	defer disp.Close()

	g, gctx := errgroup.WithContext(ctx)

	for name, addr := range map[string]string{
		"resp":     s.listeners.RESP,
		"memcache": s.listeners.Memcache,
		"ping":     s.listeners.Ping,
	} {
		name, addr := name, addr
		if addr == "" {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"codec": name, "addr": addr}).Info("listening")

		codec := dialectCodecs[name]
		g.Go(func() error { return s.acceptLoop(gctx, ln, codec, disp) })
	}

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, codec Codec, disp *Dispatcher) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go serveConn(conn, codec, s.ctx, disp, s.bufCfg)
	}
}
