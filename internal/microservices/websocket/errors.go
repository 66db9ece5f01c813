package websocket

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrHubClosed     = errors.New("hub closed")
)

// MalformedCommandError is returned for an inbound frame that does not parse
// against the command grammar. The session drops the frame and carries on.
type MalformedCommandError struct {
	Raw string
	Err error
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command: %v (raw: %s)", e.Err, e.Raw)
}

func (e *MalformedCommandError) Unwrap() error { return e.Err }

// InvalidIdentifierError is returned when a command names an id that is not a UUID.
type InvalidIdentifierError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidIdentifierError) Unwrap() error { return e.Err }

// PublishError is returned when the network rejects a publish. No echo follows.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
