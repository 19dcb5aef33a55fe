package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/visitrack/visitrack/internal/app/model"
)

// EventPublisher mirrors accepted track events to JetStream for downstream
// consumers (metrics, external analytics). The durable store stays the source
// of truth; the stream is observe-only.
type EventPublisher struct {
	js nats.JetStreamContext
}

// NewEventPublisher creates a publisher for the accepted-events stream.
func NewEventPublisher(js nats.JetStreamContext) *EventPublisher {
	return &EventPublisher{js: js}
}

// Publish sends one accepted event to the stream.
func (p *EventPublisher) Publish(ev model.AcceptedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.EventStreamSubject, data)
	return err
}
