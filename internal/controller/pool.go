package controller

import (
	"sync"

	"github.com/ringbroker/client/internal/clock"
	"github.com/ringbroker/client/internal/transport"
)

// Pool hands out RequestControllers wired to a shared Topology and
// Transport, reusing released controllers instead of allocating a fresh
// one per request. The release callback bound into each controller is
// Pool's own put method value, never a pointer into Pool's internals, so
// a controller and its pool never form a reference cycle.
type Pool struct {
	topology  Topology
	transport transport.Transport
	clock     clock.Clock

	pool sync.Pool
}

// New returns a Pool that acquires controllers against topo and tr,
// using clk as their time source.
func New(topo Topology, tr transport.Transport, clk clock.Clock) *Pool {
	p := &Pool{topology: topo, transport: tr, clock: clk}
	p.pool.New = func() interface{} {
		return newRequestController(p.topology, p.transport, p.clock, p.put)
	}
	return p
}

// Acquire returns a controller ready to be armed with ConfigureCommand or
// ConfigureControlMessage. Callers must not retain a reference past the
// point the controller reaches a terminal state; it may already have been
// handed to a different caller by then.
func (p *Pool) Acquire() *RequestController {
	return p.pool.Get().(*RequestController)
}

// put returns c to the pool. Only a controller's own finish() calls this,
// via the release callback bound at construction, and only after the
// controller has reached CLOSED.
func (p *Pool) put(c *RequestController) {
	p.pool.Put(c)
}
