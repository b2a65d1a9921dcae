// Package tools defines the tools the chat model may call and runs them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/knowledge"
)

const (
	NameSearchKnowledge = "search_knowledge"
	NameGoTo            = "go_to"
)

var ErrUnknownTool = errors.New("unknown tool")

// Definitions lists the tools offered on every model step.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        NameSearchKnowledge,
			Description: "Search the knowledge base for passages relevant to a question.",
			Parameters: []llm.ToolParameter{
				{Name: "query", Description: "What to look up, in the user's words.", Required: true},
			},
		},
		{
			Name:        NameGoTo,
			Description: "Navigate the user to a page or section of the website.",
			Parameters: []llm.ToolParameter{
				{Name: "destination", Description: "The place the user wants to go, e.g. 'pricing page' or 'faq section'.", Required: true},
			},
		},
	}
}

type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int, minSimilarity float64) []entity.KnowledgePassage
}

type DestinationResolver interface {
	Resolve(ctx context.Context, query, currentPath string, userTier entity.Tier) *entity.DestinationMatch
}

// Turn carries the caller details a tool needs.
type Turn struct {
	CurrentPath string
	Tier        entity.Tier
}

// Result is one executed tool call. Output is what goes back to the model.
type Result struct {
	CallID     string
	Name       string
	Output     string
	Passages   []entity.KnowledgePassage
	Navigation *entity.DestinationMatch
}

type Executor struct {
	knowledge     KnowledgeSearcher
	destinations  DestinationResolver
	logger        logger.ILogger
	timeout       time.Duration
	limit         int
	minSimilarity float64
}

func NewExecutor(ks KnowledgeSearcher, dr DestinationResolver, log logger.ILogger, timeout time.Duration, limit int, minSimilarity float64) *Executor {
	return &Executor{
		knowledge:     ks,
		destinations:  dr,
		logger:        log,
		timeout:       timeout,
		limit:         limit,
		minSimilarity: minSimilarity,
	}
}

// Execute runs one call. Tool failures are reported to the model in Output;
// only an unknown tool or a missing argument is an error.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall, turn Turn) (Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res := Result{CallID: call.ID, Name: call.Name}
	switch call.Name {
	case NameSearchKnowledge:
		query := stringArg(call.Arguments, "query")
		if query == "" {
			return res, fmt.Errorf("%s: missing query", call.Name)
		}
		res.Passages = e.knowledge.Search(ctx, query, e.limit, e.minSimilarity)
		res.Output = knowledge.FormatForPrompt(res.Passages)

	case NameGoTo:
		dest := stringArg(call.Arguments, "destination")
		if dest == "" {
			return res, fmt.Errorf("%s: missing destination", call.Name)
		}
		res.Navigation = e.destinations.Resolve(ctx, dest, turn.CurrentPath, turn.Tier)
		res.Output = navigationOutput(res.Navigation)

	default:
		return res, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	e.logger.Debug("Tools", "tool executed", map[string]interface{}{
		"tool":     call.Name,
		"call_id":  call.ID,
		"passages": len(res.Passages),
		"navigate": res.Navigation != nil,
	})
	return res, nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

type navigationPayload struct {
	Found bool                     `json:"found"`
	Match *entity.DestinationMatch `json:"match,omitempty"`
	Note  string                   `json:"note,omitempty"`
}

func navigationOutput(m *entity.DestinationMatch) string {
	p := navigationPayload{Found: m != nil, Match: m}
	switch {
	case m == nil:
		p.Note = "No matching page or section was found. Ask the user to rephrase."
	case m.Locked:
		p.Note = fmt.Sprintf("This destination requires the %s plan. Tell the user before sending them there.", m.RequiredTier)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return p.Note
	}
	return string(b)
}
