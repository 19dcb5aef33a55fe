package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/visitrack/visitrack/internal/app/model"
	infraprom "github.com/visitrack/visitrack/internal/infra/prometheus"
	"go.uber.org/zap"
)

// EventConsumer drains the accepted-events stream and keeps the tracking
// counters up to date.
type EventConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewEventConsumer creates a consumer over the accepted-events stream.
func NewEventConsumer(js nats.JetStreamContext, logger *zap.Logger) *EventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{js: js, logger: logger}
}

// Start ensures the stream and durable consumer exist, then consumes in the
// background.
func (c *EventConsumer) Start() error {
	_, err := c.js.StreamInfo(model.EventStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.EventStreamName,
			Subjects: []string{model.EventStreamSubject},
			MaxBytes: model.EventStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.EventStreamName, model.EventConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.EventStreamName, &nats.ConsumerConfig{
			Durable:   model.EventConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.EventStreamSubject, model.EventConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *EventConsumer) consume(sub *nats.Subscription) {
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch mirrored events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var ev model.AcceptedEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				c.logger.Error("failed to unmarshal mirrored event", zap.Error(err))
				msg.Nak()
				continue
			}

			infraprom.EventsTracked.WithLabelValues(ev.EventType).Inc()
			msg.Ack()
		}
	}
}
