package entity

// Command is a bound outbound command: a verb against a specific
// partition, with an opaque payload the shared object mapper will encode.
type Command struct {
	Partition PartitionKey
	Payload   interface{}
	// ResponseTemplateID is the template the broker is expected to answer
	// with on success; the codec uses it as the sentinel discriminator
	// between success and error frames.
	ResponseTemplateID uint16
	// NewResult, if set, returns a fresh pointer the success body is
	// unmarshaled into, allowing typed results that may implement
	// ReceiverAware. A nil NewResult falls back to a generic map.
	NewResult func() interface{}
}

// ControlMessage is a bound outbound control message: cluster-management
// traffic that does not target a specific partition's data but a leader,
// a specific node, or any reachable node.
type ControlMessage struct {
	Target             LogicalRequest
	Payload            interface{}
	ResponseTemplateID uint16
	Name               string
	// NewResult mirrors Command.NewResult.
	NewResult func() interface{}
}

// ReceiverAware is the optional capability a decoded success object may
// implement: the controller calls SetReceiver with the endpoint that
// actually produced the response, used by long-lived subscriptions that
// must bind to the serving node.
type ReceiverAware interface {
	SetReceiver(Endpoint)
}
