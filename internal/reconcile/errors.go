package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfOrder is returned when an event does not sort strictly after the
	// last applied one.
	ErrOutOfOrder = errors.New("event out of order")
	// ErrUnknownEvent is returned for records whose event name has no handler.
	ErrUnknownEvent = errors.New("unknown event")
)

// EventError is a failure confined to one event: malformed payloads, call
// data that does not match its layout, or amounts outside the supported
// scale. The event's writes are discarded and processing continues.
type EventError struct {
	Event string
	Err   error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s: %v", e.Event, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

func eventError(event string, err error) error {
	return &EventError{Event: event, Err: err}
}

// IsEventError reports whether err only affects the event that produced it.
func IsEventError(err error) bool {
	var target *EventError
	return errors.As(err, &target)
}
