package tools

import (
	"context"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/knowledge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKnowledge struct {
	gotQuery string
	gotLimit int
	gotFloor float64
	passages []entity.KnowledgePassage
}

func (f *fakeKnowledge) Search(_ context.Context, query string, limit int, floor float64) []entity.KnowledgePassage {
	f.gotQuery, f.gotLimit, f.gotFloor = query, limit, floor
	return f.passages
}

type fakeResolver struct {
	gotPath string
	gotTier entity.Tier
	match   *entity.DestinationMatch
}

func (f *fakeResolver) Resolve(_ context.Context, _ string, currentPath string, tier entity.Tier) *entity.DestinationMatch {
	f.gotPath, f.gotTier = currentPath, tier
	return f.match
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, NameSearchKnowledge, defs[0].Name)
	assert.Equal(t, NameGoTo, defs[1].Name)
	assert.True(t, defs[1].Parameters[0].Required)
}

func TestExecute_SearchKnowledge(t *testing.T) {
	ks := &fakeKnowledge{passages: []entity.KnowledgePassage{{Content: "Pro costs $20/month", SourceTitle: "Pricing", Similarity: 0.8}}}
	ex := NewExecutor(ks, &fakeResolver{}, logger.NewNop(), time.Second, 5, 0.3)

	res, err := ex.Execute(context.Background(), llm.ToolCall{ID: "call_0", Name: NameSearchKnowledge, Arguments: map[string]interface{}{"query": " pro price "}}, Turn{})

	require.NoError(t, err)
	assert.Equal(t, "pro price", ks.gotQuery)
	assert.Equal(t, 5, ks.gotLimit)
	assert.Equal(t, 0.3, ks.gotFloor)
	assert.Contains(t, res.Output, "Pro costs $20/month")
	assert.Equal(t, "call_0", res.CallID)
}

func TestExecute_SearchKnowledgeEmpty(t *testing.T) {
	ex := NewExecutor(&fakeKnowledge{}, &fakeResolver{}, logger.NewNop(), time.Second, 5, 0.3)
	res, err := ex.Execute(context.Background(), llm.ToolCall{Name: NameSearchKnowledge, Arguments: map[string]interface{}{"query": "x"}}, Turn{})
	require.NoError(t, err)
	assert.Equal(t, knowledge.NoResultsSentinel, res.Output)
}

func TestExecute_GoTo(t *testing.T) {
	match := &entity.DestinationMatch{Type: entity.MatchTypePage, Url: "/pricing", Title: "Pricing", RequiredTier: entity.TierTwo, Locked: true}
	dr := &fakeResolver{match: match}
	ex := NewExecutor(&fakeKnowledge{}, dr, logger.NewNop(), time.Second, 5, 0.3)

	res, err := ex.Execute(context.Background(), llm.ToolCall{Name: NameGoTo, Arguments: map[string]interface{}{"destination": "pricing page"}}, Turn{CurrentPath: "/", Tier: entity.TierOne})

	require.NoError(t, err)
	assert.Same(t, match, res.Navigation)
	assert.Equal(t, "/", dr.gotPath)
	assert.Equal(t, entity.TierOne, dr.gotTier)
	assert.Contains(t, res.Output, `"found":true`)
	assert.Contains(t, res.Output, "TIER2")
}

func TestExecute_GoToNoMatch(t *testing.T) {
	ex := NewExecutor(&fakeKnowledge{}, &fakeResolver{}, logger.NewNop(), time.Second, 5, 0.3)
	res, err := ex.Execute(context.Background(), llm.ToolCall{Name: NameGoTo, Arguments: map[string]interface{}{"destination": "moon"}}, Turn{})
	require.NoError(t, err)
	assert.Nil(t, res.Navigation)
	assert.Contains(t, res.Output, `"found":false`)
}

func TestExecute_Errors(t *testing.T) {
	ex := NewExecutor(&fakeKnowledge{}, &fakeResolver{}, logger.NewNop(), time.Second, 5, 0.3)

	_, err := ex.Execute(context.Background(), llm.ToolCall{Name: "delete_account"}, Turn{})
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = ex.Execute(context.Background(), llm.ToolCall{Name: NameGoTo, Arguments: map[string]interface{}{}}, Turn{})
	assert.Error(t, err)
}
