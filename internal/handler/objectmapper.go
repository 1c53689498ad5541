package handler

// ObjectMapper serializes command and control-message payloads to and from
// wire bodies. It is injected, never owned or initialized by a handler or
// the controller — exactly one instance is shared across every
// RequestController in a process.
type ObjectMapper interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}
