package nats

import (
	"testing"

	"ai-assistant-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	e := events.BaseEvent{Type: events.TypeModelFallback}
	assert.Equal(t, "events.assistant.model_fallback", Subject(e))
}

func TestBaseEventMessageID(t *testing.T) {
	var e events.Event = events.BaseEvent{Id: "turn-1", Type: events.TypeTurnCompleted}
	d, ok := e.(events.Deduplicated)
	assert.True(t, ok)
	assert.Equal(t, "turn-1", d.MessageID())
}
