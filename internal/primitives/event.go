package primitives

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a dispatch step.
type EventType string

const (
	EventProcess          EventType = "process"
	EventSendToNext       EventType = "send_to_next"
	EventReturn           EventType = "return"
	EventCapturedMutation EventType = "captured_mutation"
	EventInvariant        EventType = "invariant"
	EventKernel           EventType = "kernel"
)

// Event is the immutable record published for each dispatch step.
//
// Events are value types. Once created, Events should not be mutated. Use
// NewEvent for construction.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	Operator  string
	Level     int
	Kind      TransformKind
	Timestamp time.Time
	Data      any
}

// NewEvent creates and returns a new immutable Event.
func NewEvent(typ EventType, op string, level int, kind TransformKind, data any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		Operator:  op,
		Level:     level,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
