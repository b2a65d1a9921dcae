package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-assistant-be/pkg/events"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher handles sending events to the NATS bus.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Subject maps an event onto its JetStream subject.
func Subject(event events.Event) string {
	return SubjectPrefix + event.EventType()
}

// Publish sends an event to NATS.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := Subject(event)
	var opts []jetstream.PublishOpt
	if d, ok := event.(events.Deduplicated); ok && d.MessageID() != "" {
		opts = append(opts, jetstream.WithMsgID(d.MessageID()))
	}
	if _, err := p.js.Publish(ctx, subject, data, opts...); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}
