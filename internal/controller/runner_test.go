package controller

import (
	"testing"
	"time"

	"github.com/ringbroker/client/internal/clock"
	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/future"
	"github.com/ringbroker/client/internal/handler"
	"github.com/ringbroker/client/internal/topology/faketopology"
	"github.com/ringbroker/client/internal/transport/faketransport"
)

func TestRunner_DrivesTrackedControllerToCompletion(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(7)
	topo := faketopology.New()
	topo.SetPick(pickReq(cmd), entity.Endpoint{NodeID: "broker-1"})

	tr := faketransport.New()
	tr.EnqueueSuccess(successFrame(t, mapper, 7, "done"))

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	r := NewRunner(0)
	r.Track(c)
	go r.Run()
	defer r.Stop()

	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("runner never drove the controller to completion")
	}

	value, err := sink.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := value.(*testResult).Value; got != "done" {
		t.Errorf("expected %q, got %q", "done", got)
	}
}

// TestRunner_TrackDuringTickIsNotLost exercises the race between tick()
// snapshotting the active slice and a concurrent Track call: a controller
// tracked mid-tick must survive into the next tick's active set rather
// than being silently dropped when tick() writes back its pruned slice.
func TestRunner_TrackDuringTickIsNotLost(t *testing.T) {
	r := NewRunner(0)

	mapper := handler.JSONMapper{}

	first := testCommand(1)
	topo1 := faketopology.New()
	topo1.SetPick(pickReq(first), entity.Endpoint{NodeID: "broker-1"})
	tr1 := faketransport.New()
	tr1.EnqueueSuccess(successFrame(t, mapper, 1, "first"))

	c1 := newTestController(topo1, tr1, clock.NewFake(time.Unix(0, 0)))
	sink1 := future.New[interface{}]()
	if err := c1.ConfigureCommand(mapper, first, sink1); err != nil {
		t.Fatalf("configure c1: %v", err)
	}
	r.Track(c1)

	second := testCommand(2)
	topo2 := faketopology.New()
	topo2.SetPick(pickReq(second), entity.Endpoint{NodeID: "broker-2"})
	tr2 := faketransport.New()
	tr2.EnqueueSuccess(successFrame(t, mapper, 2, "second"))
	c2 := newTestController(topo2, tr2, clock.NewFake(time.Unix(0, 0)))
	sink2 := future.New[interface{}]()
	if err := c2.ConfigureCommand(mapper, second, sink2); err != nil {
		t.Fatalf("configure c2: %v", err)
	}

	// Track c2 right as the loop is spinning, simulating a request armed
	// concurrently with an in-progress tick.
	go func() {
		r.Track(c2)
	}()
	go r.Run()
	defer r.Stop()

	for _, sink := range []*future.Future[interface{}]{sink1, sink2} {
		select {
		case <-sink.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("a tracked controller never completed")
		}
	}
}
