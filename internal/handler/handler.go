// Package handler implements the two Request Handler variants — command
// and control-message — sharing one capability set. Go has no
// inheritance, so the shared behavior is realized directly as a single
// interface both variants satisfy; the controller is polymorphic over the
// interface, not over a base class.
package handler

import (
	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/wire"
)

// TopologyPicker is the narrow slice of the Topology View a handler needs
// to resolve its own target.
type TopologyPicker interface {
	Pick(entity.LogicalRequest) (entity.Endpoint, bool)
}

// Handler is the capability set required of both the command and
// control-message variants.
type Handler interface {
	// PickTarget resolves the endpoint to send to, or false if the
	// topology has no current answer — the caller should refresh and
	// retry.
	PickTarget(topology TopologyPicker) (entity.Endpoint, bool)
	// Serialize produces the full wire frame (header and body) for this
	// handler's request.
	Serialize() ([]byte, error)
	// MatchesResponse reports whether h identifies this handler's own
	// expected success template, the sentinel discriminator between
	// success and error frames.
	wire.ResponseHandler
	// Describe renders a short, human-readable description of the
	// request for the deadline-exhaustion narrative.
	Describe() string
}
