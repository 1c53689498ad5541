// Package clienterr implements the error taxonomy surfaced through a
// RequestController's result sink: broker errors, deadline exhaustion,
// and command rejection each arrive as a distinct, matchable type.
package clienterr

import (
	"fmt"

	"github.com/ringbroker/client/internal/entity"
)

// BrokerError is a broker-reported, non-retry-worthy error envelope
// surfaced to the sink verbatim.
type BrokerError struct {
	Code    entity.ErrorCode
	Message string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error %s: %s", e.Code, e.Message)
}

// CommandRejectedError is the one local-error subtype surfaced verbatim
// rather than wrapped, carrying the reason the broker gave for refusing
// the command outright.
type CommandRejectedError struct {
	Reason string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Reason)
}

// ClientError is produced when DETERMINE finds the deadline already
// passed. Its message carries the handler's description and the set of
// endpoints contacted so far; Cause chains any pre-existing local error so
// the original failure is not lost behind the timeout.
type ClientError struct {
	Description string
	Contacted   []entity.Endpoint
	Cause       error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request timed out: %s (contacted %v): %v", e.Description, e.Contacted, e.Cause)
	}
	return fmt.Sprintf("request timed out: %s (contacted %v)", e.Description, e.Contacted)
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// unexpectedError wraps any local error not distinguished as a
// CommandRejectedError, per the "unexpected exception during response
// handling" catch-all.
type unexpectedError struct {
	cause error
}

func (e *unexpectedError) Error() string {
	return fmt.Sprintf("unexpected exception during response handling: %v", e.cause)
}

func (e *unexpectedError) Unwrap() error {
	return e.cause
}

// Unexpected wraps cause as an unexpectedError, unless cause is already a
// CommandRejectedError, in which case it is returned unchanged — that
// subtype is always surfaced verbatim.
func Unexpected(cause error) error {
	if cause == nil {
		return nil
	}
	if _, ok := cause.(*CommandRejectedError); ok {
		return cause
	}
	return &unexpectedError{cause: cause}
}
