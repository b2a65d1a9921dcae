package gemini

import (
	"context"
	"errors"
	"testing"

	"ai-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestToContents_MapsRolesAndTools(t *testing.T) {
	history := []llm.Message{
		{Role: "system", Content: "ignored here"},
		{Role: "user", Content: "where is pricing?"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{Name: "go_to", Arguments: map[string]interface{}{"query": "pricing"}}}},
		{Role: "tool", ToolName: "go_to", Content: `{"url":"/pricing"}`},
		{Role: "assistant", Content: "Here it is."},
	}

	contents := toContents(history)
	require.Len(t, contents, 4)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "where is pricing?", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "go_to", contents[1].Parts[0].FunctionCall.Name)

	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "go_to", contents[2].Parts[0].FunctionResponse.Name)

	assert.Equal(t, "Here it is.", contents[3].Parts[0].Text)
}

func TestToTools_BuildsSchema(t *testing.T) {
	tools := toTools([]llm.ToolDefinition{{
		Name:        "search_knowledge",
		Description: "search",
		Parameters:  []llm.ToolParameter{{Name: "query", Description: "q", Required: true}},
	}})

	require.Len(t, tools, 1)
	decl := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "search_knowledge", decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"query"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["query"].Type)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, classify(ctx, genai.APIError{Code: 503, Message: "unavailable"}), llm.ErrTransient)
	assert.ErrorIs(t, classify(ctx, genai.APIError{Code: 429, Message: "quota"}), llm.ErrTransient)
	assert.NotErrorIs(t, classify(ctx, genai.APIError{Code: 400, Message: "bad"}), llm.ErrTransient)
	assert.ErrorIs(t, classify(ctx, errors.New("connection reset")), llm.ErrTransient)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, classify(cancelled, errors.New("whatever")), context.Canceled)
}
