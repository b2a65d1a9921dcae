package events

import (
	"context"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	pkgEvents "ai-assistant-be/pkg/events"

	"github.com/google/uuid"
)

// Sink is anything that can deliver an event, normally *nats.Publisher.
type Sink interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher abstracts event publishing for chat turns. Publishing is best
// effort and never fails the caller.
type Publisher interface {
	PublishTurnCompleted(ctx context.Context, turn TurnCompleted)
	PublishModelFallback(ctx context.Context, fb ModelFallback)
}

type TurnCompleted struct {
	ConversationId uuid.UUID
	TurnId         uuid.UUID
	UserId         *uuid.UUID
	ModelKey       string
	Intent         string
	Steps          int
	Characters     int
	Navigated      bool
	Duration       time.Duration
}

type ModelFallback struct {
	ConversationId uuid.UUID
	UserId         *uuid.UUID
	RequestedModel string
	ServedModel    string
	Reason         string
}

// NatsPublisher implements Publisher using NATS
type NatsPublisher struct {
	sink   Sink
	logger logger.ILogger
}

func NewNatsPublisher(sink Sink, log logger.ILogger) *NatsPublisher {
	return &NatsPublisher{sink: sink, logger: log}
}

func userIdValue(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func (p *NatsPublisher) PublishTurnCompleted(ctx context.Context, turn TurnCompleted) {
	now := time.Now()
	p.publish(ctx, pkgEvents.BaseEvent{
		Id:   pkgEvents.TypeTurnCompleted + ":" + turn.TurnId.String(),
		Type: pkgEvents.TypeTurnCompleted,
		Data: map[string]interface{}{
			"conversation_id": turn.ConversationId.String(),
			"turn_id":         turn.TurnId.String(),
			"user_id":         userIdValue(turn.UserId),
			"model":           turn.ModelKey,
			"intent":          turn.Intent,
			"steps":           turn.Steps,
			"characters":      turn.Characters,
			"navigated":       turn.Navigated,
			"duration_ms":     turn.Duration.Milliseconds(),
			"occurred_at":     now,
		},
		OccurredAt: now,
	})
}

func (p *NatsPublisher) PublishModelFallback(ctx context.Context, fb ModelFallback) {
	now := time.Now()
	p.publish(ctx, pkgEvents.BaseEvent{
		Type: pkgEvents.TypeModelFallback,
		Data: map[string]interface{}{
			"conversation_id": fb.ConversationId.String(),
			"user_id":         userIdValue(fb.UserId),
			"requested_model": fb.RequestedModel,
			"served_model":    fb.ServedModel,
			"reason":          fb.Reason,
			"occurred_at":     now,
		},
		OccurredAt: now,
	})
}

func (p *NatsPublisher) publish(ctx context.Context, evt pkgEvents.BaseEvent) {
	if p.sink == nil {
		return
	}
	// detached so a cancelled request still records the event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := p.sink.Publish(pubCtx, evt); err != nil {
		p.logger.Error("Events", "failed to publish event", map[string]interface{}{"type": evt.Type, "error": err.Error()})
	}
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) PublishTurnCompleted(context.Context, TurnCompleted) {}
func (NopPublisher) PublishModelFallback(context.Context, ModelFallback) {}
