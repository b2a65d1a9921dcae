package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/ai/tools"
	assistantEvents "ai-assistant-be/pkg/assistant/events"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/access"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type scriptedStep struct {
	deltas []string
	calls  []llm.ToolCall
	err    error
}

type fakeProvider struct {
	mu        sync.Mutex
	steps     []scriptedStep
	histories [][]llm.Message
	offered   [][]llm.ToolDefinition
	options   []llm.Options
	// textWhenNoTools answers in text once tools are withheld.
	textWhenNoTools string
}

func (p *fakeProvider) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "", nil
}

func (p *fakeProvider) Generate(context.Context, string, ...llm.Option) (string, error) {
	return "", nil
}

func (p *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, defs []llm.ToolDefinition, onDelta func(string), opts ...llm.Option) (*llm.StreamResult, error) {
	p.mu.Lock()
	idx := len(p.histories)
	p.histories = append(p.histories, append([]llm.Message(nil), history...))
	p.offered = append(p.offered, defs)
	p.options = append(p.options, llm.ApplyOptions(llm.Options{}, opts...))
	step := p.steps[min(idx, len(p.steps)-1)]
	p.mu.Unlock()

	if defs == nil && p.textWhenNoTools != "" {
		step = scriptedStep{deltas: []string{p.textWhenNoTools}}
	}

	var content strings.Builder
	for _, d := range step.deltas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content.WriteString(d)
		onDelta(d)
	}
	if step.err != nil {
		return nil, step.err
	}
	return &llm.StreamResult{Content: content.String(), ToolCalls: step.calls}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.histories)
}

type fakeRegistry struct {
	provider llm.StreamingProvider
}

func (r fakeRegistry) Get(string) (llm.StreamingProvider, error) { return r.provider, nil }

type fakeCatalog struct {
	models   map[string]*entity.ModelDescriptor
	personas map[string]*entity.Persona
	err      error
}

func (c *fakeCatalog) FindModel(_ context.Context, idOrKey string) (*entity.ModelDescriptor, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.models[idOrKey], nil
}

func (c *fakeCatalog) FindPersona(_ context.Context, key string) (*entity.Persona, error) {
	return c.personas[key], nil
}

type fakeTurnStore struct {
	mu            sync.Mutex
	checkpoints   []entity.ConversationCheckpoint
	finalized     []FinalizedTurn
	conversations map[uuid.UUID]*entity.Conversation
	findErr       error
}

func (s *fakeTurnStore) FindConversation(_ context.Context, id uuid.UUID) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.conversations[id], nil
}

func (s *fakeTurnStore) UpsertCheckpoint(_ context.Context, cp entity.ConversationCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, cp)
	return nil
}

func (s *fakeTurnStore) FinalizeTurn(_ context.Context, turn FinalizedTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, turn)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	completed []assistantEvents.TurnCompleted
	fallbacks []assistantEvents.ModelFallback
}

func (p *fakePublisher) PublishTurnCompleted(_ context.Context, turn assistantEvents.TurnCompleted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, turn)
}

func (p *fakePublisher) PublishModelFallback(_ context.Context, fb assistantEvents.ModelFallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallbacks = append(p.fallbacks, fb)
}

type fakeTools struct {
	calls  []llm.ToolCall
	result tools.Result
	err    error
}

func (f *fakeTools) Execute(_ context.Context, call llm.ToolCall, _ tools.Turn) (tools.Result, error) {
	f.calls = append(f.calls, call)
	res := f.result
	res.CallID = call.ID
	res.Name = call.Name
	return res, f.err
}

type fixedClassifier struct {
	decision entity.IntentDecision
}

func (c fixedClassifier) Classify(context.Context, []entity.ChatMessage) entity.IntentDecision {
	return c.decision
}

type harness struct {
	svc       IChatService
	provider  *fakeProvider
	catalog   *fakeCatalog
	store     *fakeTurnStore
	publisher *fakePublisher
	tools     *fakeTools
	quota     *access.MemoryQuotaStore
	events    []dto.ChatEvent
}

func newHarness(provider *fakeProvider, intent string) *harness {
	h := &harness{
		provider: provider,
		catalog: &fakeCatalog{
			models: map[string]*entity.ModelDescriptor{
				"llama3.2": {Key: "llama3.2", ProviderKey: "ollama", ProviderEnabled: true, IsActive: true},
				"gemini-2.5-pro": {
					Key: "gemini-2.5-pro", ProviderKey: "gemini", ProviderEnabled: true,
					IsActive: true, IsPremium: true, MinTier: entity.TierOne,
				},
			},
			personas: map[string]*entity.Persona{},
		},
		store:     &fakeTurnStore{},
		publisher: &fakePublisher{},
		tools:     &fakeTools{result: tools.Result{Output: "No relevant knowledge was found."}},
		quota:     access.NewMemoryQuotaStore(),
	}
	if intent == "" {
		intent = entity.PersonaDefault
	}
	h.svc = NewChatService(
		ChatConfig{DefaultModelWidget: "llama3.2", DefaultModelPage: "llama3.1", StepBudget: 5, CheckpointInterval: 500},
		fixedClassifier{decision: entity.IntentDecision{Intent: intent, Confidence: 0.9, Source: entity.IntentSourceModel}},
		h.catalog,
		access.NewController(h.quota, access.DefaultPolicy(10), logger.NewNop()),
		fakeRegistry{provider: provider},
		h.tools,
		h.store,
		h.publisher,
		logger.NewNop(),
	)
	return h
}

func (h *harness) sink(event dto.ChatEvent) error {
	h.events = append(h.events, event)
	return nil
}

func (h *harness) ofType(t dto.ChatEventType) []dto.ChatEvent {
	var out []dto.ChatEvent
	for _, e := range h.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func userTurn(text string) ChatTurn {
	return ChatTurn{
		Messages: []entity.ChatMessage{{Role: entity.RoleUser, Content: text}},
		Context:  entity.ChatContextWidget,
		Access:   entity.GuestAccessState(),
	}
}

func chunks(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	return append(out, text)
}

func TestChatService_StreamsAndCheckpoints(t *testing.T) {
	defer goleak.VerifyNone(t)

	reply := strings.Repeat("a", 1237)
	h := newHarness(&fakeProvider{steps: []scriptedStep{{deltas: chunks(reply, 10)}}}, "")

	err := h.svc.Run(context.Background(), userTurn("what does the pro plan include?"), h.sink)
	require.NoError(t, err)

	require.NotEmpty(t, h.events)
	assert.Equal(t, dto.ChatEventMeta, h.events[0].Type)
	meta := h.events[0].Data.(dto.ChatMetaPayload)
	assert.Equal(t, "llama3.2", meta.ModelId)
	assert.Empty(t, meta.FallbackReason)

	assert.Len(t, h.ofType(dto.ChatEventToken), 124)
	last := h.events[len(h.events)-1]
	require.Equal(t, dto.ChatEventDone, last.Type)
	done := last.Data.(dto.ChatDonePayload)
	assert.Equal(t, FinishStop, done.FinishReason)
	assert.Equal(t, 1237, done.Characters)
	assert.Equal(t, meta.ConversationId, done.ConversationId)

	require.Len(t, h.store.checkpoints, 2)
	for i, cp := range h.store.checkpoints {
		assert.Equal(t, entity.CheckpointStatusStreaming, cp.Status)
		assert.Equal(t, (i+1)*500, cp.LastCheckpointLength)
		assert.Len(t, cp.AccumulatedText, cp.LastCheckpointLength)
	}

	require.Len(t, h.store.finalized, 1)
	final := h.store.finalized[0]
	assert.Equal(t, entity.CheckpointStatusFinalized, final.Checkpoint.Status)
	assert.Equal(t, 1237, final.Checkpoint.LastCheckpointLength)
	assert.Equal(t, reply, final.Reply.Content)
	assert.Equal(t, "what does the pro plan include?", final.Conversation.Title)

	require.Len(t, h.publisher.completed, 1)
	assert.Equal(t, 1237, h.publisher.completed[0].Characters)
}

func TestChatService_EveryThresholdIsPersisted(t *testing.T) {
	reply := strings.Repeat("a", 1237)
	for i := 0; i < 50; i++ {
		h := newHarness(&fakeProvider{steps: []scriptedStep{{deltas: chunks(reply, 10)}}}, "")
		require.NoError(t, h.svc.Run(context.Background(), userTurn("hi"), h.sink))

		lengths := make([]int, 0, len(h.store.checkpoints))
		for _, cp := range h.store.checkpoints {
			lengths = append(lengths, cp.LastCheckpointLength)
		}
		require.Equal(t, []int{500, 1000}, lengths, "run %d", i)
		require.Len(t, h.store.finalized, 1)
	}
}

func TestChatService_ForeignConversationStartsFresh(t *testing.T) {
	owner := uuid.New()
	caller := uuid.New()
	foreign := uuid.New()
	mine := uuid.New()

	tests := []struct {
		name      string
		requested uuid.UUID
		findErr   error
		keep      bool
	}{
		{name: "own conversation continues", requested: mine, keep: true},
		{name: "unknown id is created as given", requested: uuid.New(), keep: true},
		{name: "another user's conversation is not touched", requested: foreign},
		{name: "lookup failure starts a new conversation", requested: mine, findErr: errors.New("db down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeProvider{steps: []scriptedStep{{deltas: []string{"ok"}}}}, "")
			h.store.conversations = map[uuid.UUID]*entity.Conversation{
				foreign: {Id: foreign, UserId: &owner},
				mine:    {Id: mine, UserId: &caller},
			}
			h.store.findErr = tt.findErr

			turn := userTurn("hello")
			turn.Access = entity.UserAccessState{UserId: caller, Tier: entity.TierOne}
			requested := tt.requested
			turn.ConversationId = &requested

			require.NoError(t, h.svc.Run(context.Background(), turn, h.sink))

			meta := h.events[0].Data.(dto.ChatMetaPayload)
			require.Len(t, h.store.finalized, 1)
			final := h.store.finalized[0]
			if tt.keep {
				assert.Equal(t, requested, meta.ConversationId)
			} else {
				assert.NotEqual(t, requested, meta.ConversationId)
				assert.NotEqual(t, foreign, final.Conversation.Id)
				assert.NotEqual(t, foreign, final.Checkpoint.ConversationId)
			}
			assert.Equal(t, meta.ConversationId, final.Conversation.Id)
			assert.Equal(t, meta.ConversationId, final.Checkpoint.ConversationId)
		})
	}
}

func TestChatService_FallsBackWhenTierInsufficient(t *testing.T) {
	h := newHarness(&fakeProvider{steps: []scriptedStep{{deltas: []string{"ok"}}}}, "")
	turn := userTurn("hello")
	turn.ModelId = "gemini-2.5-pro"

	require.NoError(t, h.svc.Run(context.Background(), turn, h.sink))

	meta := h.events[0].Data.(dto.ChatMetaPayload)
	assert.Equal(t, "llama3.2", meta.ModelId)
	assert.Equal(t, "gemini-2.5-pro", meta.RequestedModelId)
	assert.Equal(t, string(entity.DenyReasonTierInsufficient), meta.FallbackReason)
	assert.Equal(t, "llama3.2", h.provider.options[0].Model)

	require.Len(t, h.publisher.fallbacks, 1)
	assert.Equal(t, "gemini-2.5-pro", h.publisher.fallbacks[0].RequestedModel)
	assert.Equal(t, "llama3.2", h.publisher.fallbacks[0].ServedModel)
}

func TestChatService_FallsBackOnUnknownModel(t *testing.T) {
	h := newHarness(&fakeProvider{steps: []scriptedStep{{deltas: []string{"ok"}}}}, "")
	turn := userTurn("hello")
	turn.ModelId = "gpt-9"

	require.NoError(t, h.svc.Run(context.Background(), turn, h.sink))

	meta := h.events[0].Data.(dto.ChatMetaPayload)
	assert.Equal(t, "llama3.2", meta.ModelId)
	assert.Equal(t, FallbackModelNotFound, meta.FallbackReason)
}

func TestChatService_PremiumConsumesQuota(t *testing.T) {
	h := newHarness(&fakeProvider{steps: []scriptedStep{{deltas: []string{"ok"}}}}, "")
	userId := uuid.New()
	turn := userTurn("hello")
	turn.ModelId = "gemini-2.5-pro"
	turn.Access = entity.UserAccessState{UserId: userId, Tier: entity.TierOne}

	require.NoError(t, h.svc.Run(context.Background(), turn, h.sink))

	meta := h.events[0].Data.(dto.ChatMetaPayload)
	assert.Equal(t, "gemini-2.5-pro", meta.ModelId)
	assert.Empty(t, meta.FallbackReason)
	assert.Empty(t, h.publisher.fallbacks)

	state, ok := h.quota.Get(userId)
	require.True(t, ok)
	assert.Equal(t, 1, state.PremiumUsageToday)
}

func TestChatService_RetriesTransientFailureOnce(t *testing.T) {
	provider := &fakeProvider{steps: []scriptedStep{
		{err: fmt.Errorf("%w: 503", llm.ErrTransient)},
		{deltas: []string{"recovered"}},
	}}
	h := newHarness(provider, "")

	require.NoError(t, h.svc.Run(context.Background(), userTurn("hi"), h.sink))

	assert.Equal(t, 2, provider.callCount())
	assert.Equal(t, dto.ChatEventDone, h.events[len(h.events)-1].Type)
	assert.Empty(t, h.ofType(dto.ChatEventError))
}

func TestChatService_RetryRules(t *testing.T) {
	transient := fmt.Errorf("%w: upstream reset", llm.ErrTransient)

	tests := []struct {
		name      string
		steps     []scriptedStep
		wantCalls int
	}{
		{
			name:      "no retry after text was streamed",
			steps:     []scriptedStep{{deltas: []string{"partial"}, err: transient}},
			wantCalls: 1,
		},
		{
			name:      "no retry for permanent errors",
			steps:     []scriptedStep{{err: errors.New("400 bad request")}},
			wantCalls: 1,
		},
		{
			name:      "only one retry per turn",
			steps:     []scriptedStep{{err: transient}, {err: transient}},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{steps: tt.steps}
			h := newHarness(provider, "")

			err := h.svc.Run(context.Background(), userTurn("hi"), h.sink)

			assert.ErrorIs(t, err, ErrStream)
			assert.Equal(t, tt.wantCalls, provider.callCount())
			assert.Len(t, h.ofType(dto.ChatEventError), 1)
			assert.Empty(t, h.ofType(dto.ChatEventDone))
			assert.Empty(t, h.store.finalized)
			assert.Empty(t, h.publisher.completed)
		})
	}
}

func TestChatService_StepBudgetForcesTextAnswer(t *testing.T) {
	provider := &fakeProvider{
		steps: []scriptedStep{{calls: []llm.ToolCall{{
			ID: "call_0", Name: tools.NameSearchKnowledge, Arguments: map[string]interface{}{"query": "pricing"},
		}}}},
		textWhenNoTools: "Here is what I found.",
	}
	h := newHarness(provider, "")

	require.NoError(t, h.svc.Run(context.Background(), userTurn("pricing?"), h.sink))

	require.Equal(t, 5, provider.callCount())
	for i := 0; i < 4; i++ {
		assert.NotNil(t, provider.offered[i], "step %d offers tools", i+1)
	}
	assert.Nil(t, provider.offered[4])
	assert.Len(t, h.tools.calls, 4)
	assert.Len(t, h.ofType(dto.ChatEventTool), 8)

	done := h.events[len(h.events)-1].Data.(dto.ChatDonePayload)
	assert.Equal(t, FinishStop, done.FinishReason)
	assert.Equal(t, 5, done.Steps)

	fifth := provider.histories[4]
	assert.Equal(t, entity.RoleTool, fifth[len(fifth)-1].Role)
}

func TestChatService_StepBudgetExhaustedWhenModelKeepsCallingTools(t *testing.T) {
	provider := &fakeProvider{
		steps: []scriptedStep{{calls: []llm.ToolCall{{
			ID: "call_0", Name: tools.NameSearchKnowledge, Arguments: map[string]interface{}{"query": "pricing"},
		}}}},
	}
	h := newHarness(provider, "")

	require.NoError(t, h.svc.Run(context.Background(), userTurn("pricing?"), h.sink))

	require.Equal(t, 5, provider.callCount())
	assert.Len(t, h.tools.calls, 4)

	done := h.events[len(h.events)-1].Data.(dto.ChatDonePayload)
	assert.Equal(t, FinishStepBudget, done.FinishReason)
	assert.Equal(t, 5, done.Steps)
}

func TestChatService_NavigationToolResult(t *testing.T) {
	provider := &fakeProvider{steps: []scriptedStep{
		{calls: []llm.ToolCall{{ID: "call_0", Name: tools.NameGoTo, Arguments: map[string]interface{}{"destination": "pricing"}}}},
		{deltas: []string{"Taking you to pricing."}},
	}}
	h := newHarness(provider, "")
	h.tools.result = tools.Result{
		Output:     `{"found":true}`,
		Navigation: &entity.DestinationMatch{Type: entity.MatchTypePage, Url: "/pricing", Title: "Pricing"},
	}

	require.NoError(t, h.svc.Run(context.Background(), userTurn("take me to pricing"), h.sink))

	nav := h.ofType(dto.ChatEventNavigation)
	require.Len(t, nav, 1)
	assert.Equal(t, "/pricing", nav[0].Data.(*entity.DestinationMatch).Url)

	require.Len(t, h.store.finalized, 1)
	parts := h.store.finalized[0].Reply.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "navigation", parts[1].Type)
	assert.Equal(t, "/pricing", parts[1].Url)
	assert.True(t, h.publisher.completed[0].Navigated)
}

func TestChatService_ClientGoneCancelsTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := &fakeProvider{steps: []scriptedStep{{deltas: []string{
		strings.Repeat("b", 300), strings.Repeat("b", 300), strings.Repeat("b", 300), strings.Repeat("b", 300),
	}}}}
	h := newHarness(provider, "")

	tokens := 0
	sink := func(event dto.ChatEvent) error {
		if event.Type == dto.ChatEventToken {
			tokens++
			if tokens == 3 {
				return errors.New("write: broken pipe")
			}
		}
		return nil
	}

	err := h.svc.Run(context.Background(), userTurn("tell me everything"), sink)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.store.finalized)
	assert.Empty(t, h.publisher.completed)
	require.NotEmpty(t, h.store.checkpoints)
	lastCp := h.store.checkpoints[len(h.store.checkpoints)-1]
	assert.Equal(t, entity.CheckpointStatusStreaming, lastCp.Status)
	assert.Equal(t, 600, lastCp.LastCheckpointLength)
}

func TestChatService_PrefixRoutingAndPersonaPrompt(t *testing.T) {
	provider := &fakeProvider{steps: []scriptedStep{{deltas: []string{"Rotate them in settings."}}}}
	h := newHarness(provider, entity.PersonaTechnical)

	require.NoError(t, h.svc.Run(context.Background(), userTurn("/tech how do I rotate keys"), h.sink))

	history := provider.histories[0]
	assert.Equal(t, "how do I rotate keys", history[len(history)-1].Content)
	system := provider.options[0].System
	assert.Contains(t, system, constant.PersonaTechnicalPrompt)
	assert.Contains(t, system, constant.ContextWidgetPrompt)
	assert.Equal(t, "how do I rotate keys", h.store.finalized[0].Conversation.Title)
}

func TestChatService_StoredPersonaAndFullPageDefaults(t *testing.T) {
	provider := &fakeProvider{steps: []scriptedStep{{deltas: []string{"Plans start at $10."}}}}
	h := newHarness(provider, entity.PersonaSales)
	h.catalog.personas[entity.PersonaSales] = &entity.Persona{Key: entity.PersonaSales, SystemPrompt: "Always mention the annual discount.", IsActive: true}

	turn := userTurn("how much is it")
	turn.Context = entity.ChatContextFullPage
	require.NoError(t, h.svc.Run(context.Background(), turn, h.sink))

	opts := provider.options[0]
	assert.Equal(t, "llama3.1", opts.Model)
	assert.Contains(t, opts.System, "Always mention the annual discount.")
	assert.NotContains(t, opts.System, constant.PersonaSalesPrompt)
	assert.Contains(t, opts.System, constant.ContextFullPagePrompt)
}

func TestTurnState_String(t *testing.T) {
	assert.Equal(t, "model_selecting", StateModelSelecting.String())
	assert.Equal(t, "state(42)", TurnState(42).String())
}
