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

func TestPool_ReleasedControllerIsReused(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	topo.SetPick(pickReq(cmd), endpoint)

	tr := faketransport.New()
	tr.EnqueueSuccess(successFrame(t, mapper, 42, "first"))

	pool := New(topo, tr, clock.NewFake(time.Unix(0, 0)))

	first := pool.Acquire()
	sink1 := future.New[interface{}]()
	if err := first.ConfigureCommand(mapper, cmd, sink1); err != nil {
		t.Fatalf("configure: %v", err)
	}
	for i := 0; i < 10 && !sink1.IsDone(); i++ {
		first.Step()
	}
	if !sink1.IsDone() {
		t.Fatalf("first request never completed")
	}
	if !first.IsClosed() {
		t.Fatalf("expected controller to be closed after completion")
	}

	tr.EnqueueSuccess(successFrame(t, mapper, 42, "second"))
	second := pool.Acquire()
	if second != first {
		t.Fatalf("expected Acquire to hand back the released controller")
	}

	sink2 := future.New[interface{}]()
	if err := second.ConfigureCommand(mapper, cmd, sink2); err != nil {
		t.Fatalf("configure: %v", err)
	}
	for i := 0; i < 10 && !sink2.IsDone(); i++ {
		second.Step()
	}
	if !sink2.IsDone() {
		t.Fatalf("second request never completed")
	}
	value, err := sink2.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := value.(*testResult).Value; got != "second" {
		t.Errorf("expected %q, got %q", "second", got)
	}
}

func TestRequestController_ConfigureFailsWhenArmed(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	tr := faketransport.New()

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := c.ConfigureCommand(mapper, cmd, sink); err == nil {
		t.Errorf("expected error re-arming an already-armed controller")
	}
}
