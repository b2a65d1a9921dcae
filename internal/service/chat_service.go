package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/ai/tools"
	assistantEvents "ai-assistant-be/pkg/assistant/events"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/access"
	"ai-assistant-be/pkg/rag/checkpoint"
	"ai-assistant-be/pkg/rag/intent"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TurnState is the lifecycle of one chat turn.
type TurnState int

const (
	StateIdle TurnState = iota
	StateClassifying
	StateModelSelecting
	StateStreaming
	StateCheckpointing
	StateFinalizing
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClassifying:
		return "classifying"
	case StateModelSelecting:
		return "model_selecting"
	case StateStreaming:
		return "streaming"
	case StateCheckpointing:
		return "checkpointing"
	case StateFinalizing:
		return "finalizing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	FinishStop       = "stop"
	FinishStepBudget = "step_budget"

	FallbackModelNotFound = "model_not_found"
	FallbackCatalogError  = "catalog_unavailable"
	FallbackAccessError   = "access_unavailable"
)

// ErrStream is returned when the model stream fails after the retry.
var ErrStream = errors.New("model stream failed")

// EventSink delivers one event to the client. An error means the client is
// gone and the turn is cancelled.
type EventSink func(event dto.ChatEvent) error

type IntentClassifier interface {
	Classify(ctx context.Context, recent []entity.ChatMessage) entity.IntentDecision
}

type ProviderRegistry interface {
	Get(key string) (llm.StreamingProvider, error)
}

type ToolRunner interface {
	Execute(ctx context.Context, call llm.ToolCall, turn tools.Turn) (tools.Result, error)
}

type ChatConfig struct {
	DefaultModelWidget string
	DefaultModelPage   string
	StepBudget         int
	CheckpointInterval int
	PersistTimeout     time.Duration
}

// ChatTurn is one validated request.
type ChatTurn struct {
	Messages       []entity.ChatMessage
	ModelId        string
	ConversationId *uuid.UUID
	Context        entity.ChatContext
	CurrentPath    string
	Access         entity.UserAccessState
}

type IChatService interface {
	Run(ctx context.Context, turn ChatTurn, sink EventSink) error
}

type chatService struct {
	cfg        ChatConfig
	classifier IntentClassifier
	catalog    ModelCatalog
	access     *access.Controller
	providers  ProviderRegistry
	tools      ToolRunner
	store      TurnStore
	events     assistantEvents.Publisher
	logger     logger.ILogger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewChatService(
	cfg ChatConfig,
	classifier IntentClassifier,
	catalog ModelCatalog,
	accessController *access.Controller,
	providers ProviderRegistry,
	toolRunner ToolRunner,
	store TurnStore,
	publisher assistantEvents.Publisher,
	log logger.ILogger,
) IChatService {
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = 5
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = checkpoint.DefaultInterval
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &chatService{
		cfg:        cfg,
		classifier: classifier,
		catalog:    catalog,
		access:     accessController,
		providers:  providers,
		tools:      toolRunner,
		store:      store,
		events:     publisher,
		logger:     log,
		tracer:     otel.Tracer("ai-assistant-be/chat"),
		now:        time.Now,
	}
}

// turnRun is the per-request state. It is owned by the goroutine in Run.
type turnRun struct {
	svc    *chatService
	turn   ChatTurn
	sink   EventSink
	cancel context.CancelFunc
	state  TurnState

	conversationId uuid.UUID
	turnId         uuid.UUID
	intent         entity.IntentDecision
	model          entity.ModelDescriptor
	provider       llm.StreamingProvider

	acc        *checkpoint.Accumulator
	writer     *checkpoint.Writer
	retried    bool
	sinkErr    error
	navigation *entity.DestinationMatch
	steps      int
}

func (s *chatService) Run(ctx context.Context, turn ChatTurn, sink EventSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "chat.turn")
	defer span.End()

	r := &turnRun{
		svc:    s,
		turn:   turn,
		sink:   sink,
		cancel: cancel,
		turnId: uuid.New(),
		acc:    checkpoint.NewAccumulator(s.cfg.CheckpointInterval),
	}
	r.conversationId = r.claimConversation(ctx)
	span.SetAttributes(
		attribute.String("chat.conversation_id", r.conversationId.String()),
		attribute.String("chat.context", string(turn.Context)),
	)

	err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("chat.model", r.model.Key),
		attribute.String("chat.intent", r.intent.Intent),
		attribute.Int("chat.steps", r.steps),
	)
	return err
}

// claimConversation keeps the requested conversation only when the caller
// owns it or it does not exist yet. Anything else starts a new one.
func (r *turnRun) claimConversation(ctx context.Context) uuid.UUID {
	requested := r.turn.ConversationId
	if requested == nil || *requested == uuid.Nil {
		return uuid.New()
	}

	conv, err := r.svc.store.FindConversation(ctx, *requested)
	if err != nil {
		r.svc.logger.Warn("Orchestrator", "conversation lookup failed, starting a new one", map[string]interface{}{
			"conversation_id": requested.String(),
			"error":           err.Error(),
		})
		return uuid.New()
	}
	if conv != nil && !conv.OwnedBy(r.userId()) {
		r.svc.logger.Warn("Orchestrator", "conversation owned by another user, starting a new one", map[string]interface{}{
			"conversation_id": requested.String(),
		})
		return uuid.New()
	}
	return *requested
}

func (r *turnRun) transition(next TurnState) {
	if r.state == next {
		return
	}
	r.svc.logger.Debug("Orchestrator", "turn state", map[string]interface{}{
		"turn_id": r.turnId.String(),
		"from":    r.state.String(),
		"to":      next.String(),
	})
	r.state = next
}

func (r *turnRun) emit(t dto.ChatEventType, data interface{}) {
	if r.sinkErr != nil {
		return
	}
	if err := r.sink(dto.ChatEvent{Type: t, Data: data}); err != nil {
		r.sinkErr = err
		r.cancel()
	}
}

func (r *turnRun) execute(ctx context.Context) error {
	start := r.svc.now()
	defer r.transition(StateIdle)

	r.transition(StateClassifying)
	r.intent = r.svc.classifier.Classify(ctx, r.turn.Messages)

	r.transition(StateModelSelecting)
	persona := r.loadPersona(ctx)
	requested, fallbackReason := r.selectModel(ctx, persona)
	if err := ctx.Err(); err != nil {
		return err
	}

	provider, err := r.svc.providers.Get(r.model.ProviderKey)
	if err != nil {
		r.emit(dto.ChatEventError, dto.ChatErrorPayload{Message: "no model provider is available"})
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	r.provider = provider

	r.emit(dto.ChatEventMeta, dto.ChatMetaPayload{
		ConversationId:   r.conversationId,
		TurnId:           r.turnId,
		ModelId:          r.model.Key,
		RequestedModelId: requested,
		FallbackReason:   fallbackReason,
		Intent:           r.intent.Intent,
		IntentSource:     r.intent.Source,
	})

	r.writer = checkpoint.NewWriter(r.svc.store, r.svc.logger, r.svc.cfg.PersistTimeout)
	r.transition(StateStreaming)
	finish, streamErr := r.stream(ctx, r.systemPrompt(persona))
	r.writer.Close()

	if ctx.Err() != nil {
		r.svc.logger.Info("Orchestrator", "turn cancelled", map[string]interface{}{
			"turn_id":      r.turnId.String(),
			"generated":    r.acc.Len(),
			"checkpointed": r.acc.LastCheckpointLength(),
		})
		return ctx.Err()
	}
	if streamErr != nil {
		r.svc.logger.Error("Orchestrator", "model stream failed", map[string]interface{}{
			"turn_id": r.turnId.String(),
			"model":   r.model.Key,
			"retried": r.retried,
			"error":   streamErr.Error(),
		})
		r.emit(dto.ChatEventError, dto.ChatErrorPayload{Message: "The assistant could not complete this response. Please try again."})
		return fmt.Errorf("%w: %v", ErrStream, streamErr)
	}

	r.emit(dto.ChatEventDone, dto.ChatDonePayload{
		ConversationId: r.conversationId,
		TurnId:         r.turnId,
		FinishReason:   finish,
		Steps:          r.steps,
		Characters:     r.acc.Len(),
	})

	r.transition(StateFinalizing)
	r.finalize(ctx)

	r.svc.events.PublishTurnCompleted(ctx, assistantEvents.TurnCompleted{
		ConversationId: r.conversationId,
		TurnId:         r.turnId,
		UserId:         r.userId(),
		ModelKey:       r.model.Key,
		Intent:         r.intent.Intent,
		Steps:          r.steps,
		Characters:     r.acc.Len(),
		Navigated:      r.navigation != nil,
		Duration:       r.svc.now().Sub(start),
	})
	return nil
}

func (r *turnRun) userId() *uuid.UUID {
	if r.turn.Access.UserId == uuid.Nil {
		return nil
	}
	id := r.turn.Access.UserId
	return &id
}

func (r *turnRun) loadPersona(ctx context.Context) *entity.Persona {
	persona, err := r.svc.catalog.FindPersona(ctx, r.intent.Intent)
	if err != nil {
		r.svc.logger.Warn("Orchestrator", "persona lookup failed, using built-in prompt", map[string]interface{}{
			"intent": r.intent.Intent,
			"error":  err.Error(),
		})
		return nil
	}
	return persona
}

func (r *turnRun) defaultModelKey() string {
	if r.turn.Context == entity.ChatContextFullPage {
		return r.svc.cfg.DefaultModelPage
	}
	return r.svc.cfg.DefaultModelWidget
}

// defaultModel never fails: a catalog miss yields a descriptor served by
// the fallback provider.
func (r *turnRun) defaultModel(ctx context.Context) entity.ModelDescriptor {
	key := r.defaultModelKey()
	desc, err := r.svc.catalog.FindModel(ctx, key)
	if err != nil || desc == nil {
		return entity.ModelDescriptor{Key: key, IsActive: true, ProviderEnabled: true}
	}
	return *desc
}

// selectModel picks the serving model. Any problem with an explicit choice
// falls back to the context default; the reason is returned, not raised.
func (r *turnRun) selectModel(ctx context.Context, persona *entity.Persona) (requested, reason string) {
	requested = strings.TrimSpace(r.turn.ModelId)
	if requested == "" {
		r.model = r.defaultModel(ctx)
		if persona != nil && persona.ModelOverride != nil && *persona.ModelOverride != "" {
			if desc, ok := r.tryModel(ctx, *persona.ModelOverride); ok {
				r.model = desc
			}
		}
		return "", ""
	}

	desc, err := r.svc.catalog.FindModel(ctx, requested)
	switch {
	case err != nil:
		reason = FallbackCatalogError
		r.svc.logger.Warn("Orchestrator", "catalog lookup failed", map[string]interface{}{"model": requested, "error": err.Error()})
	case desc == nil:
		reason = FallbackModelNotFound
	default:
		decision, _, err := r.svc.access.Authorize(ctx, r.turn.Access, *desc, r.svc.now())
		switch {
		case err != nil:
			reason = FallbackAccessError
			r.svc.logger.Warn("Orchestrator", "access check failed", map[string]interface{}{"model": desc.Key, "error": err.Error()})
		case !decision.Admitted:
			reason = string(decision.Reason)
		default:
			r.model = *desc
			return requested, ""
		}
	}

	r.model = r.defaultModel(ctx)
	r.svc.logger.Info("Orchestrator", "model fallback", map[string]interface{}{
		"requested": requested,
		"served":    r.model.Key,
		"reason":    reason,
		"tier":      r.turn.Access.Tier.String(),
	})
	r.svc.events.PublishModelFallback(ctx, assistantEvents.ModelFallback{
		ConversationId: r.conversationId,
		UserId:         r.userId(),
		RequestedModel: requested,
		ServedModel:    r.model.Key,
		Reason:         reason,
	})
	return requested, reason
}

// tryModel admits a persona override only when it needs no quota.
func (r *turnRun) tryModel(ctx context.Context, key string) (entity.ModelDescriptor, bool) {
	desc, err := r.svc.catalog.FindModel(ctx, key)
	if err != nil || desc == nil || desc.IsPremium {
		return entity.ModelDescriptor{}, false
	}
	d, _ := access.Evaluate(r.turn.Access, *desc, r.svc.now(), access.Policy{})
	return *desc, d.Admitted
}

func (r *turnRun) systemPrompt(persona *entity.Persona) string {
	personaPrompt := builtinPersonaPrompts[r.intent.Intent]
	if persona != nil && strings.TrimSpace(persona.SystemPrompt) != "" {
		personaPrompt = persona.SystemPrompt
	}
	if personaPrompt == "" {
		personaPrompt = constant.PersonaDefaultPrompt
	}

	var sb strings.Builder
	sb.WriteString(constant.AssistantBasePrompt)
	sb.WriteString("\n\n")
	sb.WriteString(personaPrompt)
	sb.WriteString("\n\n")
	if r.turn.Context == entity.ChatContextFullPage {
		sb.WriteString(constant.ContextFullPagePrompt)
	} else {
		sb.WriteString(constant.ContextWidgetPrompt)
	}
	if r.turn.CurrentPath != "" {
		sb.WriteString("\nThe user is currently on " + r.turn.CurrentPath + ".")
	}
	return sb.String()
}

var builtinPersonaPrompts = map[string]string{
	entity.PersonaDefault:   constant.PersonaDefaultPrompt,
	entity.PersonaTechnical: constant.PersonaTechnicalPrompt,
	entity.PersonaSales:     constant.PersonaSalesPrompt,
	entity.PersonaSupport:   constant.PersonaSupportPrompt,
}

// history projects the request onto provider messages. A routing prefix on
// the last user message is stripped.
func (r *turnRun) history() []llm.Message {
	msgs := r.turn.Messages
	lastUser := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == entity.RoleUser {
			lastUser = i
			break
		}
	}

	out := make([]llm.Message, 0, len(msgs))
	for i, m := range msgs {
		if m.Role == entity.RoleSystem {
			continue
		}
		text := m.Text()
		if i == lastUser {
			if parsed := intent.ParsePrefix(text); parsed.Intent != "" && !parsed.IsEmpty() {
				text = parsed.CleanPrompt
			}
		}
		out = append(out, llm.Message{Role: m.Role, Content: text})
	}
	return out
}

// stream drives up to StepBudget model steps. The last step is offered no
// tools so the model has to answer in text.
func (r *turnRun) stream(ctx context.Context, system string) (string, error) {
	history := r.history()
	opts := []llm.Option{llm.WithModel(r.model.Key), llm.WithSystem(system)}
	defs := tools.Definitions()
	toolTurn := tools.Turn{CurrentPath: r.turn.CurrentPath, Tier: r.turn.Access.Tier}

	for step := 1; step <= r.svc.cfg.StepBudget; step++ {
		r.steps = step
		final := step == r.svc.cfg.StepBudget
		offered := defs
		if final {
			offered = nil
		}

		res, err := r.streamStep(ctx, history, offered, opts)
		if err != nil {
			return "", err
		}
		if len(res.ToolCalls) == 0 {
			return FinishStop, nil
		}
		if final {
			break
		}

		history = append(history, llm.Message{Role: entity.RoleAssistant, Content: res.Content, ToolCalls: res.ToolCalls})
		for _, call := range res.ToolCalls {
			history = append(history, r.runTool(ctx, call, toolTurn))
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}
	}

	r.svc.logger.Warn("Orchestrator", "tool step budget exhausted", map[string]interface{}{
		"turn_id": r.turnId.String(),
		"budget":  r.svc.cfg.StepBudget,
	})
	return FinishStepBudget, nil
}

// streamStep runs one model step with at most one retry per turn, and only
// when the failed attempt produced no text.
func (r *turnRun) streamStep(ctx context.Context, history []llm.Message, defs []llm.ToolDefinition, opts []llm.Option) (*llm.StreamResult, error) {
	for {
		emitted := 0
		res, err := r.provider.ChatStream(ctx, history, defs, func(delta string) {
			emitted++
			r.onDelta(delta)
		}, opts...)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.retried || emitted > 0 || !errors.Is(err, llm.ErrTransient) {
			return nil, err
		}
		r.retried = true
		r.svc.logger.Warn("Orchestrator", "transient provider failure, retrying once", map[string]interface{}{
			"turn_id": r.turnId.String(),
			"model":   r.model.Key,
			"error":   err.Error(),
		})
	}
}

func (r *turnRun) onDelta(delta string) {
	if delta == "" {
		return
	}
	r.emit(dto.ChatEventToken, dto.ChatTokenPayload{Text: delta})
	if !r.acc.Feed(delta) {
		return
	}
	r.transition(StateCheckpointing)
	length := r.acc.Mark()
	r.writer.Submit(r.checkpoint(entity.CheckpointStatusStreaming, length))
	r.transition(StateStreaming)
}

func (r *turnRun) checkpoint(status entity.CheckpointStatus, length int) entity.ConversationCheckpoint {
	text := r.acc.Text()
	if length < r.acc.Len() {
		text = string([]rune(text)[:length])
	}
	return entity.ConversationCheckpoint{
		ConversationId:       r.conversationId,
		TurnId:               r.turnId,
		UserId:               r.userId(),
		AccumulatedText:      text,
		LastCheckpointLength: length,
		SelectedModelKey:     r.model.Key,
		Status:               status,
		UpdatedAt:            r.svc.now(),
	}
}

func (r *turnRun) runTool(ctx context.Context, call llm.ToolCall, toolTurn tools.Turn) llm.Message {
	r.emit(dto.ChatEventTool, dto.ChatToolPayload{CallId: call.ID, Name: call.Name, Status: "started"})

	res, err := r.svc.tools.Execute(ctx, call, toolTurn)
	msg := llm.Message{Role: entity.RoleTool, ToolName: call.Name, ToolID: call.ID}
	if err != nil {
		r.svc.logger.Warn("Orchestrator", "tool call failed", map[string]interface{}{
			"tool":  call.Name,
			"error": err.Error(),
		})
		r.emit(dto.ChatEventTool, dto.ChatToolPayload{CallId: call.ID, Name: call.Name, Status: "failed"})
		msg.Content = "Tool error: " + err.Error()
		return msg
	}

	r.emit(dto.ChatEventTool, dto.ChatToolPayload{CallId: call.ID, Name: call.Name, Status: "completed"})
	if res.Navigation != nil {
		r.navigation = res.Navigation
		r.emit(dto.ChatEventNavigation, res.Navigation)
	}
	msg.Content = res.Output
	return msg
}

// finalize is best effort; the client already has the full response.
func (r *turnRun) finalize(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.svc.cfg.PersistTimeout)
	defer cancel()

	reply := entity.ChatMessage{Role: entity.RoleAssistant, Content: r.acc.Text()}
	if r.navigation != nil {
		reply.Parts = []entity.MessagePart{
			{Type: "text", Text: r.acc.Text()},
			{Type: "navigation", Text: r.navigation.Title, Url: navigationUrl(r.navigation)},
		}
	}

	err := r.svc.store.FinalizeTurn(ctx, FinalizedTurn{
		Conversation: entity.Conversation{
			Id:       r.conversationId,
			UserId:   r.userId(),
			Context:  r.turn.Context,
			Title:    conversationTitle(r.turn.Messages),
			ModelKey: r.model.Key,
		},
		Request:    r.turn.Messages,
		Reply:      reply,
		Checkpoint: r.checkpoint(entity.CheckpointStatusFinalized, r.acc.Len()),
	})
	if err != nil {
		r.svc.logger.Error("Orchestrator", "finalize failed", map[string]interface{}{
			"conversation_id": r.conversationId.String(),
			"turn_id":         r.turnId.String(),
			"error":           err.Error(),
		})
	}
}

func navigationUrl(m *entity.DestinationMatch) string {
	if m.ElementId == "" {
		return m.Url
	}
	return m.Url + "#" + m.ElementId
}

func conversationTitle(msgs []entity.ChatMessage) string {
	for _, m := range msgs {
		if m.Role != entity.RoleUser {
			continue
		}
		title := strings.TrimSpace(intent.ParsePrefix(m.Text()).CleanPrompt)
		if r := []rune(title); len(r) > 80 {
			title = string(r[:80])
		}
		return title
	}
	return ""
}
