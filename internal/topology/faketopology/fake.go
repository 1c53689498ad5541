// Package faketopology is a deterministic controller.Topology double,
// letting tests script Pick answers and control exactly when a refresh
// completes.
package faketopology

import (
	"sync"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/future"
	"github.com/ringbroker/client/internal/topology"
)

type pickAnswer struct {
	endpoint entity.Endpoint
	ok       bool
}

// Topology is a scripted controller.Topology: Pick answers are set per
// LogicalRequest key, and each RefreshNow call consumes the next queued
// handle (or, if none was queued, returns one that is already done
// successfully).
type Topology struct {
	mu      sync.Mutex
	answers map[entity.LogicalRequest]pickAnswer
	queue   []*topology.RefreshHandle
}

// New returns a Topology with no scripted Pick answers.
func New() *Topology {
	return &Topology{answers: make(map[entity.LogicalRequest]pickAnswer)}
}

// SetPick arranges for Pick(req) to return (endpoint, true).
func (t *Topology) SetPick(req entity.LogicalRequest, endpoint entity.Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers[req] = pickAnswer{endpoint: endpoint, ok: true}
}

// ClearPick arranges for Pick(req) to return (Endpoint{}, false), as if
// the topology has no current answer for req.
func (t *Topology) ClearPick(req entity.LogicalRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.answers, req)
}

func (t *Topology) Pick(req entity.LogicalRequest) (entity.Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.answers[req]
	if !ok {
		return entity.Endpoint{}, false
	}
	return a.endpoint, a.ok
}

// EnqueueRefresh arranges for the next RefreshNow call to return handle
// instead of an immediately-successful one, letting a test hold a
// controller in AWAIT_REFRESH and resolve it on its own schedule.
func (t *Topology) EnqueueRefresh(handle *topology.RefreshHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, handle)
}

func (t *Topology) RefreshNow() *topology.RefreshHandle {
	t.mu.Lock()
	if len(t.queue) > 0 {
		h := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()
		return h
	}
	t.mu.Unlock()

	h := future.New[struct{}]()
	h.Complete(struct{}{})
	return h
}
