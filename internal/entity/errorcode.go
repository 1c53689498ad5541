package entity

import "strconv"

// ErrorCode is the broker-reported error code carried in an error envelope
// frame. The tail of the enum is open-ended: any value the controller does
// not recognize by name is still a valid, opaque code it must be able to
// carry through to a BrokerError.
type ErrorCode uint16

const (
	// NullVal is the absence sentinel: a response frame that decoded as a
	// success matched no error code at all, so the zero value must never be
	// confused with a real error.
	NullVal ErrorCode = 0
	// RequestTimeout means the broker itself gave up waiting on something
	// internal (e.g. a partition leader that stalled); retry-worthy.
	RequestTimeout ErrorCode = 1
	// TopicNotFound means the addressed (topic, partition) no longer exists
	// on the contacted node, most commonly after a partition moved; retry
	// -worthy after a topology refresh.
	TopicNotFound ErrorCode = 2
	// ConstraintViolated is a representative non-retry-worthy domain error
	// code (e.g. a uniqueness constraint on the command payload).
	ConstraintViolated ErrorCode = 3
	// InvalidArgument is a representative non-retry-worthy domain error
	// code for malformed command payloads.
	InvalidArgument ErrorCode = 4
)

var errorCodeNames = map[ErrorCode]string{
	NullVal:            "NULL_VAL",
	RequestTimeout:     "REQUEST_TIMEOUT",
	TopicNotFound:      "TOPIC_NOT_FOUND",
	ConstraintViolated: "CONSTRAINT_VIOLATED",
	InvalidArgument:    "INVALID_ARGUMENT",
}

// String renders a known code by name and falls back to a numeric form for
// the open-ended domain tail, so unrecognized codes never panic a caller.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "ERROR_CODE(" + strconv.Itoa(int(c)) + ")"
}

// retryWorthy holds the codes for which the controller re-issues the
// request against a freshly refreshed topology instead of surfacing a
// BrokerError.
var retryWorthy = map[ErrorCode]bool{
	RequestTimeout: true,
	TopicNotFound:  true,
}

// IsRetryWorthy reports whether the controller should refresh the topology
// and retry on this code rather than failing the request.
func (c ErrorCode) IsRetryWorthy() bool {
	return retryWorthy[c]
}
