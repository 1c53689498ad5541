package entity

import "net"

// Endpoint identifies a single broker node that a request can be sent to,
// pairing a stable node ID with its address so the controller can log and
// compare endpoints (contacted-set bookkeeping) independent of DNS
// resolution quirks.
type Endpoint struct {
	NodeID string
	Addr   *net.TCPAddr
}

func (e Endpoint) String() string {
	if e.Addr == nil {
		return e.NodeID
	}
	return e.NodeID + "@" + e.Addr.String()
}

// Equal reports whether two endpoints refer to the same broker node.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.NodeID == other.NodeID
}

// ContactedSet is an insertion-order-agnostic set of endpoints a single
// logical request has attempted, kept for the ClientError deadline
// narrative and for diagnostics.
type ContactedSet map[string]Endpoint

// NewContactedSet returns an empty contacted set.
func NewContactedSet() ContactedSet {
	return make(ContactedSet)
}

// Add records that endpoint was contacted.
func (c ContactedSet) Add(e Endpoint) {
	c[e.NodeID] = e
}

// Endpoints returns the contacted endpoints as a slice, sorted by node ID so
// error messages are deterministic.
func (c ContactedSet) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(c))
	for _, e := range c {
		out = append(out, e)
	}
	sortEndpoints(out)
	return out
}

func sortEndpoints(es []Endpoint) {
	for i := 1; i < len(es); i++ {
		for j := i; j > 0 && es[j].NodeID < es[j-1].NodeID; j-- {
			es[j], es[j-1] = es[j-1], es[j]
		}
	}
}
