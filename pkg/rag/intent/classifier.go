// Package intent picks the persona for a chat turn.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
)

const (
	historyWindow  = 3
	maxMessageLen  = 400
	classifierTemp = 0.1
)

var knownIntents = map[string]bool{
	entity.PersonaDefault:   true,
	entity.PersonaTechnical: true,
	entity.PersonaSales:     true,
	entity.PersonaSupport:   true,
}

type Options struct {
	Model           string
	ConfidenceFloor float64
	Timeout         time.Duration
}

func DefaultOptions() Options {
	return Options{ConfidenceFloor: 0.6, Timeout: 3 * time.Second}
}

// Classifier never fails: every problem degrades to the default intent.
type Classifier struct {
	llm    llm.LLMProvider
	opts   Options
	logger logger.ILogger
}

func NewClassifier(provider llm.LLMProvider, opts Options, log logger.ILogger) *Classifier {
	return &Classifier{llm: provider, opts: opts, logger: log}
}

func (c *Classifier) Classify(ctx context.Context, recent []entity.ChatMessage) entity.IntentDecision {
	if last, ok := lastUserText(recent); ok {
		if parsed := ParsePrefix(last); parsed.Intent != "" {
			return entity.IntentDecision{Intent: parsed.Intent, Confidence: 1.0, Source: entity.IntentSourcePrefix}
		}
	}

	transcript := buildTranscript(recent)
	if transcript == "" || c.llm == nil {
		return fallback()
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	opts := []llm.Option{llm.WithTemperature(classifierTemp), llm.WithMaxTokens(60)}
	if c.opts.Model != "" {
		opts = append(opts, llm.WithModel(c.opts.Model))
	}
	raw, err := c.llm.Generate(ctx, fmt.Sprintf(constant.IntentClassifierPrompt, transcript), opts...)
	if err != nil {
		c.logger.Warn("Classifier", "classifier call failed, using default", map[string]interface{}{"error": err.Error()})
		return fallback()
	}

	decision, err := parseDecision(raw)
	if err != nil {
		c.logger.Warn("Classifier", "unparseable classifier output", map[string]interface{}{"error": err.Error(), "raw": raw})
		return fallback()
	}
	if decision.Confidence < c.opts.ConfidenceFloor {
		c.logger.Debug("Classifier", "confidence below floor", map[string]interface{}{
			"intent":     decision.Intent,
			"confidence": decision.Confidence,
		})
		return entity.IntentDecision{Intent: entity.PersonaDefault, Confidence: decision.Confidence, Source: entity.IntentSourceFallback}
	}
	return decision
}

func fallback() entity.IntentDecision {
	return entity.IntentDecision{Intent: entity.PersonaDefault, Source: entity.IntentSourceFallback}
}

func lastUserText(msgs []entity.ChatMessage) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == entity.RoleUser {
			return msgs[i].Text(), true
		}
	}
	return "", false
}

// buildTranscript renders the last few text messages as "Role: text" lines.
func buildTranscript(msgs []entity.ChatMessage) string {
	var lines []string
	for i := len(msgs) - 1; i >= 0 && len(lines) < historyWindow; i-- {
		m := msgs[i]
		if m.Role != entity.RoleUser && m.Role != entity.RoleAssistant {
			continue
		}
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		if r := []rune(text); len(r) > maxMessageLen {
			text = string(r[:maxMessageLen]) + "..."
		}
		role := "User"
		if m.Role == entity.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, role+": "+text)
	}

	var sb strings.Builder
	for i := len(lines) - 1; i >= 0; i-- {
		sb.WriteString(lines[i])
		sb.WriteString("\n")
	}
	return sb.String()
}

type classifierOutput struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// parseDecision tolerates code fences and prose around the JSON object.
func parseDecision(response string) (entity.IntentDecision, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return entity.IntentDecision{}, fmt.Errorf("no JSON object in %q", response)
	}

	var out classifierOutput
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &out); err != nil {
		return entity.IntentDecision{}, err
	}

	intent := strings.ToLower(strings.TrimSpace(out.Intent))
	if !knownIntents[intent] {
		return entity.IntentDecision{}, fmt.Errorf("unknown intent %q", out.Intent)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return entity.IntentDecision{}, fmt.Errorf("confidence %v out of range", out.Confidence)
	}
	return entity.IntentDecision{Intent: intent, Confidence: out.Confidence, Source: entity.IntentSourceModel}, nil
}
