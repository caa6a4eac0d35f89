package serve

import (
	"github.com/corekv/corekv/internal/corectx"
	"github.com/corekv/corekv/internal/proto"
)

// Dispatcher serializes every store operation through a single
// goroutine, so internal/store never needs its own locking: many
// connection goroutines may parse and compose concurrently, but only
// one Execute call runs at a time. This plays the role go-fuse gives
// its LockingRawFileSystem wrapper, except the lock is a channel
// handoff instead of a mutex.
type Dispatcher struct {
	ctx  *corectx.CoreContext
	jobs chan job
}

type job struct {
	req  *proto.Request
	done chan []*proto.Response
}

// NewDispatcher starts the dispatch goroutine bound to ctx. Call
// Close to stop it once no more connections reference it.
func NewDispatcher(ctx *corectx.CoreContext) *Dispatcher {
	d := &Dispatcher{ctx: ctx, jobs: make(chan job, 64)}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for j := range d.jobs {
		j.done <- Execute(d.ctx, j.req)
	}
}

// Submit hands req to the dispatch goroutine and blocks for its
// Response(s). Safe to call from any number of goroutines.
func (d *Dispatcher) Submit(req *proto.Request) []*proto.Response {
	done := make(chan []*proto.Response, 1)
	d.jobs <- job{req: req, done: done}
	return <-done
}

// Close shuts down the dispatch goroutine. Any Submit call racing a
// Close is the caller's responsibility to avoid, the same contract
// Go channels always impose.
func (d *Dispatcher) Close() {
	close(d.jobs)
}
