package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	PassageChunkSize    = 1500
	PassageChunkOverlap = 200
)

// ReindexRequest is the payload on the index topic.
type ReindexRequest struct {
	Reason string `json:"reason"`
	Full   bool   `json:"full"`
}

// IndexStats counts rows embedded by one pass.
type IndexStats struct {
	Pages    int `json:"pages"`
	Sections int `json:"sections"`
	Passages int `json:"passages"`
	Failed   int `json:"failed"`
}

type IIndexerService interface {
	// RequestRefresh queues a pass; it does not wait for it.
	RequestRefresh(ctx context.Context, req ReindexRequest) error
	// Reindex embeds every active row that has no embedding yet.
	Reindex(ctx context.Context, full bool) (IndexStats, error)
	IngestSource(ctx context.Context, sourceUrl, sourceTitle, content string) (int, error)
	Consume(ctx context.Context) error
	HandleCatalogEvent(ctx context.Context, event events.Event) error
}

type indexerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	logger     logger.ILogger
}

func NewIndexerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embedder embedding.EmbeddingProvider,
	log logger.ILogger,
) IIndexerService {
	return &indexerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		embedder:   embedder,
		logger:     log,
	}
}

func (s *indexerService) RequestRefresh(ctx context.Context, req ReindexRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := s.pubSub.Publish(s.topicName, msg); err != nil {
		return fmt.Errorf("queue reindex: %w", err)
	}
	return nil
}

func (s *indexerService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()
	return nil
}

func (s *indexerService) processMessage(ctx context.Context, msg *message.Message) {
	var req ReindexRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		s.logger.Warn("Indexer", "dropping malformed reindex request", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	stats, err := s.Reindex(ctx, req.Full)
	if err != nil {
		s.logger.Error("Indexer", "reindex failed", map[string]interface{}{"reason": req.Reason, "error": err.Error()})
		msg.Nack()
		return
	}

	s.logger.Info("Indexer", "reindex finished", map[string]interface{}{
		"reason":   req.Reason,
		"full":     req.Full,
		"pages":    stats.Pages,
		"sections": stats.Sections,
		"passages": stats.Passages,
		"failed":   stats.Failed,
	})
	msg.Ack()
}

// HandleCatalogEvent turns catalog changes from the bus into a refresh.
func (s *indexerService) HandleCatalogEvent(ctx context.Context, event events.Event) error {
	if !strings.HasPrefix(event.EventType(), events.CatalogPrefix) {
		return nil
	}
	full, _ := event.Payload()["full"].(bool)
	return s.RequestRefresh(ctx, ReindexRequest{Reason: event.EventType(), Full: full})
}

func (s *indexerService) Reindex(ctx context.Context, full bool) (IndexStats, error) {
	var stats IndexStats
	uow := s.uowFactory.NewUnitOfWork(ctx)
	destinations := uow.DestinationRepository()
	knowledge := uow.KnowledgeRepository()

	if full {
		if err := destinations.ClearEmbeddings(ctx); err != nil {
			return stats, fmt.Errorf("clear destination embeddings: %w", err)
		}
		if err := knowledge.ClearEmbeddings(ctx); err != nil {
			return stats, fmt.Errorf("clear passage embeddings: %w", err)
		}
	}

	pending := []specification.Specification{specification.Active{}, specification.MissingEmbedding{}}

	pages, err := destinations.FindAllPages(ctx, pending...)
	if err != nil {
		return stats, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		if s.embed(ctx, p.Document(), func(v []float32) error { return destinations.UpdatePageEmbedding(ctx, p.Id, v) }) {
			stats.Pages++
		} else {
			stats.Failed++
		}
	}

	sections, err := destinations.FindAllSections(ctx, pending...)
	if err != nil {
		return stats, fmt.Errorf("list sections: %w", err)
	}
	for _, sec := range sections {
		if s.embed(ctx, sec.Document(), func(v []float32) error { return destinations.UpdateSectionEmbedding(ctx, sec.Id, v) }) {
			stats.Sections++
		} else {
			stats.Failed++
		}
	}

	chunks, err := knowledge.FindAll(ctx, pending...)
	if err != nil {
		return stats, fmt.Errorf("list passages: %w", err)
	}
	for _, c := range chunks {
		if s.embed(ctx, c.Content, func(v []float32) error { return knowledge.UpdateEmbedding(ctx, c.Id, v) }) {
			stats.Passages++
		} else {
			stats.Failed++
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// embed reports success; a failed row stays unembedded for the next pass.
func (s *indexerService) embed(ctx context.Context, text string, store func([]float32) error) bool {
	if ctx.Err() != nil {
		return false
	}
	res, err := s.embedder.Generate(ctx, text, embedding.TaskRetrievalDocument)
	if err != nil {
		s.logger.Warn("Indexer", "embedding failed", map[string]interface{}{"error": err.Error(), "chars": len(text)})
		return false
	}
	if err := store(res.Embedding.Values); err != nil {
		s.logger.Warn("Indexer", "storing embedding failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

// IngestSource replaces all passages of a source with fresh chunks. They are
// embedded by the next Reindex.
func (s *indexerService) IngestSource(ctx context.Context, sourceUrl, sourceTitle, content string) (int, error) {
	content = strings.TrimSpace(content)
	if sourceUrl == "" || content == "" {
		return 0, fmt.Errorf("source url and content are required")
	}
	chunks := utils.SplitText(content, PassageChunkSize, PassageChunkOverlap)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	repo := uow.KnowledgeRepository()
	if err := repo.DeleteBySourceUrl(ctx, sourceUrl); err != nil {
		return 0, fmt.Errorf("delete old passages: %w", err)
	}
	for i, chunk := range chunks {
		if err := repo.Create(ctx, &entity.KnowledgeChunk{
			Id:          uuid.New(),
			SourceUrl:   sourceUrl,
			SourceTitle: sourceTitle,
			Content:     chunk,
			ChunkIndex:  i,
			IsActive:    true,
		}); err != nil {
			return 0, fmt.Errorf("create passage %d: %w", i, err)
		}
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
