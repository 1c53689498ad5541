package controller

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ringbroker/client/internal/clienterr"
	"github.com/ringbroker/client/internal/clock"
	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/future"
	"github.com/ringbroker/client/internal/handler"
	"github.com/ringbroker/client/internal/topology/faketopology"
	"github.com/ringbroker/client/internal/transport/faketransport"
	"github.com/ringbroker/client/internal/wire"
)

type testResult struct {
	Value    string `json:"value"`
	Receiver entity.Endpoint
}

func (r *testResult) SetReceiver(e entity.Endpoint) {
	r.Receiver = e
}

func testCommand(templateID uint16) entity.Command {
	return entity.Command{
		Partition:          entity.PartitionKey{Topic: "orders", Partition: 0},
		Payload:            map[string]string{"op": "create"},
		ResponseTemplateID: templateID,
		NewResult:          func() interface{} { return &testResult{} },
	}
}

func successFrame(t *testing.T, mapper handler.ObjectMapper, templateID uint16, value string) []byte {
	t.Helper()
	body, err := mapper.Marshal(map[string]string{"value": value})
	if err != nil {
		t.Fatalf("marshal success body: %v", err)
	}
	return wire.EncodeFrame(templateID, 1, 1, body)
}

func errorFrame(code entity.ErrorCode, data string) []byte {
	env := wire.EncodeErrorEnvelope(code, []byte(data))
	return wire.EncodeFrame(0xFFFF, 1, 1, env)
}

func newTestController(topo Topology, tr *faketransport.Transport, clk clock.Clock) *RequestController {
	return newRequestController(topo, tr, clk, func(*RequestController) {})
}

func pickReq(cmd entity.Command) entity.LogicalRequest {
	return entity.LogicalRequest{Kind: entity.TargetPartition, Partition: cmd.Partition}
}

// Scenario 1: happy path.
func TestRequestController_HappyPath(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	topo.SetPick(pickReq(cmd), endpoint)

	tr := faketransport.New()
	tr.EnqueueSuccess(successFrame(t, mapper, 42, "ok"))

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	for i := 0; i < 10 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	value, err := sink.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := value.(*testResult)
	if !ok {
		t.Fatalf("unexpected result type %T", value)
	}
	if diff := cmp.Diff("ok", got.Value); diff != "" {
		t.Errorf("decoded value mismatch:\n%s", diff)
	}
	if !c.IsClosed() {
		t.Errorf("expected controller to return to CLOSED")
	}
	if calls := tr.Calls(); len(calls) != 1 {
		t.Errorf("expected 1 send, got %d", len(calls))
	}
}

// Scenario 2: retry on TOPIC_NOT_FOUND.
func TestRequestController_RetryOnTopicNotFound(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpointA := entity.Endpoint{NodeID: "broker-a"}
	endpointB := entity.Endpoint{NodeID: "broker-b"}
	req := pickReq(cmd)
	topo.SetPick(req, endpointA)

	tr := faketransport.New()
	tr.EnqueueSuccess(errorFrame(entity.TopicNotFound, "topic foo"))

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	// Drive until the first attempt's error reaches HANDLE_RESPONSE.
	for c.ctx.state != handleResponse {
		c.Step()
	}

	// Point the second attempt at a different endpoint with a success frame.
	topo.SetPick(req, endpointB)
	tr.EnqueueSuccess(successFrame(t, mapper, 42, "ok"))

	for i := 0; i < 20 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	if _, err := sink.Get(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ctx.attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", c.ctx.attempts)
	}
	if c.ctx.errorCode != entity.NullVal {
		t.Errorf("expected cleared error code, got %v", c.ctx.errorCode)
	}
	contacted := c.ctx.contacted.Endpoints()
	if len(contacted) != 2 {
		t.Errorf("expected 2 contacted endpoints, got %d", len(contacted))
	}
}

// Scenario 3: hard broker error.
func TestRequestController_HardBrokerError(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	topo.SetPick(pickReq(cmd), endpoint)

	tr := faketransport.New()
	tr.EnqueueSuccess(errorFrame(entity.ConstraintViolated, "duplicate id"))

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	for i := 0; i < 10 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	_, err := sink.Get()
	if err == nil {
		t.Fatalf("expected error")
	}
	brokerErr, ok := err.(*clienterr.BrokerError)
	if !ok {
		t.Fatalf("expected *clienterr.BrokerError, got %T", err)
	}
	if brokerErr.Code != entity.ConstraintViolated || brokerErr.Message != "duplicate id" {
		t.Errorf("unexpected broker error: %+v", brokerErr)
	}
	if !c.IsClosed() {
		t.Errorf("expected controller to return to CLOSED")
	}
	if c.ctx.attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", c.ctx.attempts)
	}
}

// Scenario 4: deadline exhaustion via unknown topic.
func TestRequestController_DeadlineExhaustion(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New() // Pick never has an answer.

	tr := faketransport.New()
	clk := clock.NewFake(time.Unix(0, 0))
	c := newTestController(topo, tr, clk)
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	// Run a few ticks: DETERMINE -> REFRESH -> AWAIT_REFRESH -> DETERMINE,
	// all before the deadline.
	for i := 0; i < 4; i++ {
		c.Step()
	}
	if sink.IsDone() {
		t.Fatalf("sink completed before deadline")
	}

	clk.Advance(RequestTimeout + time.Second)

	for i := 0; i < 10 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	_, err := sink.Get()
	if err == nil {
		t.Fatalf("expected error")
	}
	clientErr, ok := err.(*clienterr.ClientError)
	if !ok {
		t.Fatalf("expected *clienterr.ClientError, got %T", err)
	}
	if !strings.Contains(clientErr.Error(), "command[topic=orders partition=0]") {
		t.Errorf("expected description in error message, got %q", clientErr.Error())
	}
	if len(tr.Calls()) != 0 {
		t.Errorf("expected no send calls, got %d", len(tr.Calls()))
	}
	// Every pass through DETERMINE is an endpoint-resolution attempt even
	// when the pick never resolves and no send is ever issued.
	if c.ctx.attempts < 2 {
		t.Errorf("expected at least 2 resolution attempts counted, got %d", c.ctx.attempts)
	}
}

// Scenario 5: command rejected, surfaced verbatim.
func TestRequestController_CommandRejected(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	topo.SetPick(pickReq(cmd), endpoint)

	tr := faketransport.New()
	rejection := &clienterr.CommandRejectedError{Reason: "duplicate order id"}
	tr.EnqueueError(rejection)

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	for i := 0; i < 10 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	_, err := sink.Get()
	if err != rejection {
		t.Fatalf("expected rejection surfaced verbatim, got %v (%T)", err, err)
	}
	if pending := tr.LastPending(); pending == nil || !pending.Released() {
		t.Errorf("expected pending to be released")
	}
	if c.ctx.attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", c.ctx.attempts)
	}
}

// Scenario 6: receiver-aware result.
func TestRequestController_ReceiverAware(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	topo.SetPick(pickReq(cmd), endpoint)

	tr := faketransport.New()
	tr.EnqueueSuccess(successFrame(t, mapper, 42, "ok"))

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	for i := 0; i < 10 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	value, err := sink.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := value.(*testResult)
	if got.Receiver != endpoint {
		t.Errorf("expected receiver %v, got %v", endpoint, got.Receiver)
	}
}

// send returning nil (no free slot) leaves state unchanged, per the
// boundary behavior in spec §8.
func TestRequestController_NoFreeSlotRetries(t *testing.T) {
	mapper := handler.JSONMapper{}
	cmd := testCommand(42)
	topo := faketopology.New()
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	topo.SetPick(pickReq(cmd), endpoint)

	tr := faketransport.New()
	tr.EnqueueNoSlot()
	tr.EnqueueSuccess(successFrame(t, mapper, 42, "ok"))

	c := newTestController(topo, tr, clock.NewFake(time.Unix(0, 0)))
	sink := future.New[interface{}]()
	if err := c.ConfigureCommand(mapper, cmd, sink); err != nil {
		t.Fatalf("configure: %v", err)
	}

	c.Step() // CLOSED -> DETERMINE
	c.Step() // DETERMINE: no slot, stays in DETERMINE
	if c.ctx.state != determine {
		t.Fatalf("expected state to remain DETERMINE, got %v", c.ctx.state)
	}

	for i := 0; i < 10 && !sink.IsDone(); i++ {
		c.Step()
	}
	if !sink.IsDone() {
		t.Fatalf("sink never completed")
	}
	if _, err := sink.Get(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.Calls()) != 2 {
		t.Errorf("expected 2 send attempts, got %d", len(tr.Calls()))
	}
	// The no-slot pass through DETERMINE still counts as a
	// resolution attempt even though Send returned no pending request.
	if c.ctx.attempts != 2 {
		t.Errorf("expected 2 resolution attempts, got %d", c.ctx.attempts)
	}
}
