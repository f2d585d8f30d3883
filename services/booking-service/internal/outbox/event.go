package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Event is a domain event waiting in the outbox. The Kafka topic equals
// EventType.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewAppointmentEvent(eventType, appointmentID string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.NewString(),
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}

// Record is an outbox row as the publisher sees it.
type Record struct {
	Event
	Traceparent string
	Tracestate  string
}
