package controller

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ringbroker/client/internal/clienterr"
	"github.com/ringbroker/client/internal/clock"
	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/future"
	"github.com/ringbroker/client/internal/handler"
	"github.com/ringbroker/client/internal/topology"
	"github.com/ringbroker/client/internal/transport"
	"github.com/ringbroker/client/internal/wire"
)

// RequestTimeout is the fixed wall-clock budget given to a single logical
// request, from the moment it is armed.
const RequestTimeout = 5 * time.Second

// Topology is the slice of a topology view a controller needs: resolving
// a logical request to an endpoint, and kicking off a refresh.
type Topology interface {
	handler.TopologyPicker
	RefreshNow() *topology.RefreshHandle
}

// requestContext holds every per-request mutable field, owned exclusively
// by the RequestController that is currently armed. No synchronization is
// needed: only the cooperative runner's single goroutine ever touches it.
type requestContext struct {
	handler    handler.Handler
	resultSink future.Sink[interface{}]

	deadline  time.Time
	attempts  int
	contacted entity.ContactedSet

	pending       transport.Pending
	refreshHandle *topology.RefreshHandle

	receiver entity.Endpoint
	decoded  interface{}

	errorCode  entity.ErrorCode
	errorBytes []byte
	exception  error

	state controllerState
	armed bool

	traceID string
}

func (c *requestContext) reset() {
	*c = requestContext{contacted: entity.NewContactedSet(), state: closed}
}

// RequestController drives a single outbound command or control-message
// request through the state machine to completion, then releases itself
// back to its pool. Not safe for concurrent use; a single Runner goroutine
// must be the only caller of Step.
type RequestController struct {
	ctx requestContext

	topology  Topology
	transport transport.Transport
	clock     clock.Clock
	log       log.Logger

	release func(*RequestController)
}

// newRequestController builds a controller wired to the given
// collaborators. release is invoked exactly once, when the controller
// reaches a terminal state, and is expected to be the owning pool's put
// method — never a pointer back into pool internals, so the pool and its
// controllers never form a reference cycle.
func newRequestController(topo Topology, tr transport.Transport, clk clock.Clock, release func(*RequestController)) *RequestController {
	c := &RequestController{
		topology:  topo,
		transport: tr,
		clock:     clk,
		log:       log.New("module", "controller"),
		release:   release,
	}
	c.ctx.reset()
	return c
}

// ConfigureCommand arms the controller with cmd, completing sink exactly
// once when the request reaches a terminal outcome. Returns an error if
// the controller is already armed.
func (c *RequestController) ConfigureCommand(mapper handler.ObjectMapper, cmd entity.Command, sink future.Sink[interface{}]) error {
	if c.ctx.armed {
		return errors.New("controller: already armed")
	}
	c.ctx.reset()
	c.ctx.handler = handler.NewCommandHandler(mapper, cmd)
	c.ctx.resultSink = sink
	c.ctx.armed = true
	c.ctx.traceID = uuid.NewString()
	return nil
}

// ConfigureControlMessage arms the controller with msg. See
// ConfigureCommand.
func (c *RequestController) ConfigureControlMessage(mapper handler.ObjectMapper, msg entity.ControlMessage, sink future.Sink[interface{}]) error {
	if c.ctx.armed {
		return errors.New("controller: already armed")
	}
	c.ctx.reset()
	c.ctx.handler = handler.NewControlMessageHandler(mapper, msg)
	c.ctx.resultSink = sink
	c.ctx.armed = true
	c.ctx.traceID = uuid.NewString()
	return nil
}

// IsClosed reports whether the controller is idle and available for
// re-arming.
func (c *RequestController) IsClosed() bool {
	return c.ctx.state == closed && !c.ctx.armed
}

// Step advances the state machine by one transition and returns the
// number of work units performed this tick: zero means idle (the runner
// should simply call Step again later), any positive value means
// progress was made. Step never blocks and never panics on request
// failure — every error reaches the sink, not the caller.
func (c *RequestController) Step() int {
	switch c.ctx.state {
	case closed:
		return c.stepClosed()
	case determine:
		return c.stepDetermine()
	case refresh:
		return c.stepRefresh()
	case awaitRefresh:
		return c.stepAwaitRefresh()
	case execute:
		return c.stepExecute()
	case handleResponse:
		return c.stepHandleResponse()
	case finished:
		c.finish(c.ctx.decoded, nil)
		return 1
	case failed:
		c.finish(nil, c.deriveFailure())
		return 1
	default:
		return 0
	}
}

func (c *RequestController) stepClosed() int {
	if !c.ctx.armed {
		return 0
	}
	c.ctx.deadline = c.clock.Now().Add(RequestTimeout)
	c.ctx.state = determine
	return 1
}

func (c *RequestController) stepDetermine() int {
	c.ctx.attempts++

	if c.clock.Now().After(c.ctx.deadline) {
		c.ctx.exception = &clienterr.ClientError{
			Description: c.ctx.handler.Describe(),
			Contacted:   c.ctx.contacted.Endpoints(),
			Cause:       c.ctx.exception,
		}
		c.ctx.state = failed
		return 1
	}

	endpoint, ok := c.ctx.handler.PickTarget(c.topology)
	if !ok {
		c.ctx.state = refresh
		return 1
	}

	frame, err := c.ctx.handler.Serialize()
	if err != nil {
		c.ctx.exception = clienterr.Unexpected(err)
		c.ctx.state = failed
		return 1
	}

	pending := c.transport.Send(endpoint, frame)
	if pending == nil {
		// No free transport slot this tick; stay in DETERMINE and let the
		// runner reschedule us.
		return 1
	}

	c.ctx.contacted.Add(endpoint)
	c.ctx.receiver = endpoint
	c.ctx.pending = pending
	c.ctx.state = execute
	return 1
}

func (c *RequestController) stepRefresh() int {
	c.ctx.refreshHandle = c.topology.RefreshNow()
	c.ctx.state = awaitRefresh
	return 1
}

func (c *RequestController) stepAwaitRefresh() int {
	if !c.ctx.refreshHandle.IsDone() {
		return 0
	}
	// A failed refresh is recovered locally: let the deadline, not the
	// refresh error, decide whether the overall request gives up.
	if _, err := c.ctx.refreshHandle.Get(); err != nil {
		c.log.Debug("topology refresh failed, retrying", "err", err, "trace", c.ctx.traceID)
	}
	c.ctx.refreshHandle = nil
	c.ctx.state = determine
	return 1
}

func (c *RequestController) stepExecute() int {
	if !c.ctx.pending.IsDone() {
		return 0
	}
	frame, err := c.ctx.pending.Take()
	c.ctx.pending.Release()
	c.ctx.pending = nil

	if err != nil {
		c.ctx.exception = clienterr.Unexpected(err)
		c.ctx.state = failed
		return 1
	}

	decoded, err := wire.TryDecodeResponse(c.ctx.handler, frame)
	if err != nil {
		c.ctx.exception = clienterr.Unexpected(err)
		c.ctx.state = failed
		return 1
	}

	if decoded.Error != nil {
		c.ctx.errorCode = decoded.Error.Code
		c.ctx.errorBytes = decoded.Error.Data
	} else {
		c.ctx.decoded = decoded.Success
		if aware, ok := decoded.Success.(entity.ReceiverAware); ok {
			aware.SetReceiver(c.ctx.receiver)
		}
	}
	c.ctx.state = handleResponse
	return 1
}

func (c *RequestController) stepHandleResponse() int {
	switch {
	case c.ctx.errorCode == entity.NullVal:
		c.ctx.state = finished
	case c.ctx.errorCode.IsRetryWorthy():
		// Clear error state before re-entering REFRESH so it cannot leak
		// into a later, unrelated final failure.
		c.ctx.errorCode = entity.NullVal
		c.ctx.errorBytes = nil
		c.ctx.state = refresh
	default:
		c.ctx.state = failed
	}
	return 1
}

// deriveFailure computes the error surfaced to the sink when FAILED is
// entered, in precedence order: a reported broker error code, then any
// captured local exception, then a synthetic unknown error.
func (c *RequestController) deriveFailure() error {
	if c.ctx.errorCode != entity.NullVal {
		return &clienterr.BrokerError{
			Code:    c.ctx.errorCode,
			Message: decodeErrorMessage(c.ctx.errorBytes),
		}
	}
	if c.ctx.exception != nil {
		return c.ctx.exception
	}
	return errors.New("unknown error during request execution")
}

func decodeErrorMessage(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("<%d bytes of non-utf8 error data>", len(data))
}

// finish completes the result sink exactly once, returns the controller
// to CLOSED, then releases it back to its pool.
func (c *RequestController) finish(value interface{}, err error) {
	if err != nil {
		c.ctx.resultSink.CompleteErr(err)
	} else {
		c.ctx.resultSink.Complete(value)
	}
	c.ctx.armed = false
	c.ctx.state = closed
	c.release(c)
}
