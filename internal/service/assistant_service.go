package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/ai/tools"
	"ai-assistant-be/pkg/rag/access"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrModelNotFound        = errors.New("model not found")
	ErrEmptyQuery           = errors.New("query is required")
)

type AccessStateFinder interface {
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserAccessState, error)
}

type CheckpointFinder interface {
	FindCheckpoint(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationCheckpoint, error)
}

type SearchConfig struct {
	DefaultLimit  int
	MaxLimit      int
	MinSimilarity float64
}

type IAssistantService interface {
	// AccessState loads the caller's tier and counter. claimTier is the
	// token's tier claim, used when no stored row exists.
	AccessState(ctx context.Context, userId uuid.UUID, claimTier *entity.Tier) entity.UserAccessState
	AccessStatus(ctx context.Context, state entity.UserAccessState, modelId string) (*dto.AccessStatusResponse, error)
	Resolve(ctx context.Context, state entity.UserAccessState, req *dto.ResolveRequest) (*dto.ResolveResponse, error)
	Search(ctx context.Context, query string, limit int) (*dto.SearchResponse, error)
	Checkpoint(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (*dto.CheckpointResponse, error)
}

type assistantService struct {
	states      AccessStateFinder
	checkpoints CheckpointFinder
	catalog     ModelCatalog
	access      *access.Controller
	resolver    tools.DestinationResolver
	knowledge   tools.KnowledgeSearcher
	search      SearchConfig
	logger      logger.ILogger
	now         func() time.Time
}

func NewAssistantService(
	states AccessStateFinder,
	checkpoints CheckpointFinder,
	catalog ModelCatalog,
	accessController *access.Controller,
	resolver tools.DestinationResolver,
	knowledge tools.KnowledgeSearcher,
	search SearchConfig,
	log logger.ILogger,
) IAssistantService {
	if search.DefaultLimit <= 0 {
		search.DefaultLimit = 5
	}
	if search.MaxLimit < search.DefaultLimit {
		search.MaxLimit = 20
	}
	return &assistantService{
		states:      states,
		checkpoints: checkpoints,
		catalog:     catalog,
		access:      accessController,
		resolver:    resolver,
		knowledge:   knowledge,
		search:      search,
		logger:      log,
		now:         time.Now,
	}
}

func (s *assistantService) AccessState(ctx context.Context, userId uuid.UUID, claimTier *entity.Tier) entity.UserAccessState {
	if userId == uuid.Nil {
		return entity.GuestAccessState()
	}

	state, err := s.states.FindByUserId(ctx, userId)
	if err != nil {
		s.logger.Warn("Access", "failed to load access state, using token tier", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}
	if err == nil && state != nil {
		return *state
	}

	tier := entity.TierOne
	if claimTier != nil {
		tier = *claimTier
	}
	return entity.UserAccessState{UserId: userId, Tier: tier}
}

func (s *assistantService) AccessStatus(ctx context.Context, state entity.UserAccessState, modelId string) (*dto.AccessStatusResponse, error) {
	desc, err := s.catalog.FindModel(ctx, modelId)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrModelNotFound
	}

	d, err := s.access.Preview(ctx, state, *desc, s.now())
	if err != nil {
		return nil, err
	}
	return &dto.AccessStatusResponse{
		Tier:     state.Tier.String(),
		ModelId:  desc.Key,
		Admitted: d.Admitted,
		Reason:   string(d.Reason),
		Metered:  d.Metered,
		Limit:    d.Limit,
		Used:     d.Used,
		ResetAt:  d.ResetAt,
	}, nil
}

func (s *assistantService) Resolve(ctx context.Context, state entity.UserAccessState, req *dto.ResolveRequest) (*dto.ResolveResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return &dto.ResolveResponse{Match: s.resolver.Resolve(ctx, query, req.CurrentPath, state.Tier)}, nil
}

func (s *assistantService) Search(ctx context.Context, query string, limit int) (*dto.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.search.DefaultLimit
	}
	if limit > s.search.MaxLimit {
		limit = s.search.MaxLimit
	}

	passages := s.knowledge.Search(ctx, query, limit, s.search.MinSimilarity)
	if passages == nil {
		passages = []entity.KnowledgePassage{}
	}
	return &dto.SearchResponse{Query: query, Passages: passages}, nil
}

// Checkpoint returns the latest checkpoint. A checkpoint owned by another
// user is reported as missing.
func (s *assistantService) Checkpoint(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (*dto.CheckpointResponse, error) {
	cp, err := s.checkpoints.FindCheckpoint(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, ErrConversationNotFound
	}
	if cp.UserId != nil && *cp.UserId != userId {
		return nil, ErrConversationNotFound
	}

	return &dto.CheckpointResponse{
		ConversationId:       cp.ConversationId,
		TurnId:               cp.TurnId,
		Text:                 cp.AccumulatedText,
		LastCheckpointLength: cp.LastCheckpointLength,
		ModelId:              cp.SelectedModelKey,
		Status:               string(cp.Status),
		UpdatedAt:            cp.UpdatedAt,
	}, nil
}
