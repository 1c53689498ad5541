// Package faketransport is a deterministic, in-memory transport.Transport
// double, letting controller tests script exactly what each Send call
// returns without a running broker.
package faketransport

import (
	"sync"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/transport"
)

// Call records one Send invocation, for test assertions.
type Call struct {
	Endpoint entity.Endpoint
	Frame    []byte
}

type scriptKind int

const (
	kindImmediate scriptKind = iota
	kindNoSlot
	kindHandle
)

type scriptItem struct {
	kind   scriptKind
	frame  []byte
	err    error
	handle *Pending
}

// Transport is a scripted transport.Transport: each call to Send consumes
// the next queued script item in order. An empty queue falls back to
// returning a Pending that is already done with no frame and no error.
type Transport struct {
	mu          sync.Mutex
	queue       []scriptItem
	calls       []Call
	lastPending *Pending
}

// New returns an empty, unscripted Transport.
func New() *Transport {
	return &Transport{}
}

// EnqueueSuccess arranges for the next Send call to return a Pending that
// is already done, yielding frame with no error.
func (t *Transport) EnqueueSuccess(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, scriptItem{kind: kindImmediate, frame: frame})
}

// EnqueueError arranges for the next Send call to return a Pending that
// is already done with err and no frame.
func (t *Transport) EnqueueError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, scriptItem{kind: kindImmediate, err: err})
}

// EnqueueNoSlot arranges for the next Send call to return nil, simulating
// a transport with no free request slot.
func (t *Transport) EnqueueNoSlot() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, scriptItem{kind: kindNoSlot})
}

// EnqueueDeferred arranges for the next Send call to return a Pending the
// caller completes later by calling Complete on the returned handle,
// letting a test hold a controller in EXECUTE across several ticks.
func (t *Transport) EnqueueDeferred() *Pending {
	p := &Pending{done: make(chan struct{})}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, scriptItem{kind: kindHandle, handle: p})
	return p
}

// Calls returns every Send invocation so far, in order.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

func (t *Transport) Send(endpoint entity.Endpoint, frame []byte) transport.Pending {
	t.mu.Lock()
	t.calls = append(t.calls, Call{Endpoint: endpoint, Frame: frame})
	if len(t.queue) == 0 {
		t.mu.Unlock()
		p := &Pending{done: closedChan()}
		t.mu.Lock()
		t.lastPending = p
		t.mu.Unlock()
		return p
	}
	item := t.queue[0]
	t.queue = t.queue[1:]
	t.mu.Unlock()

	switch item.kind {
	case kindNoSlot:
		return nil
	case kindHandle:
		t.mu.Lock()
		t.lastPending = item.handle
		t.mu.Unlock()
		return item.handle
	default:
		p := &Pending{done: closedChan(), frame: item.frame, err: item.err}
		t.mu.Lock()
		t.lastPending = p
		t.mu.Unlock()
		return p
	}
}

// LastPending returns the Pending most recently handed out by Send, for
// tests that need to assert Release was called on it.
func (t *Transport) LastPending() *Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPending
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Pending is the scripted transport.Pending returned by Transport.Send.
type Pending struct {
	mu       sync.Mutex
	done     chan struct{}
	frame    []byte
	err      error
	released bool
}

// Complete resolves a Pending created via EnqueueDeferred.
func (p *Pending) Complete(frame []byte, err error) {
	p.mu.Lock()
	p.frame, p.err = frame, err
	p.mu.Unlock()
	close(p.done)
}

func (p *Pending) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Pending) Take() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame, p.err
}

func (p *Pending) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

// Released reports whether Release was called, for test assertions.
func (p *Pending) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
