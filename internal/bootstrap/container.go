package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/implementation"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/internal/websocket"
	"ai-assistant-be/pkg/ai/tools"
	assistantEvents "ai-assistant-be/pkg/assistant/events"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/llm/factory"
	"ai-assistant-be/pkg/llm/gemini"
	"ai-assistant-be/pkg/llm/ollama"
	"ai-assistant-be/pkg/rag/access"
	"ai-assistant-be/pkg/rag/destination"
	"ai-assistant-be/pkg/rag/intent"
	"ai-assistant-be/pkg/rag/knowledge"
	"ai-assistant-be/pkg/vectorindex"

	pktNats "ai-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	AssistantController controller.IAssistantController

	// Background Services (Exposed for main.go to run)
	IndexerService service.IIndexerService
	WebSocketHub   *websocket.Hub
	Logger         logger.ILogger

	natsConn *nats.Conn
	natsSub  *pktNats.Subscriber
	rdb      *redis.Client
	pubSub   *gochannel.GoChannel
	catalog  jetstream.ConsumeContext
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermillLogger,
	)

	// 3. Embeddings and similarity search
	embeddingProvider := NewEmbeddingProvider(cfg)
	index := vectorindex.NewPgVectorIndex(db)

	// 4. Chat model providers, keyed by catalog provider key
	registry := factory.NewRegistry(cfg.Ai.LLMProvider)
	registry.Register("ollama", ollama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.DefaultModelWidget))
	if cfg.Keys.GoogleGemini != "" {
		geminiProvider, err := gemini.NewGeminiProvider(context.Background(), cfg.Keys.GoogleGemini, "gemini-2.5-flash")
		if err != nil {
			log.Printf("[WARN] Gemini chat provider unavailable: %v", err)
		} else {
			registry.Register("gemini", geminiProvider)
		}
	}
	classifierProvider, err := registry.Default()
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (classifier %s)", cfg.Ai.LLMProvider, cfg.Ai.ClassifierModel)

	// 5. Infrastructure
	var (
		natsConn  *nats.Conn
		natsPub   *pktNats.Publisher
		natsSub   *pktNats.Subscriber
		publisher assistantEvents.Publisher = assistantEvents.NopPublisher{}
	)
	nc, js, err := pktNats.Connect(context.Background(), cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS: %v", err)
	} else {
		natsConn = nc
		natsPub = pktNats.NewPublisher(js)
		natsSub = pktNats.NewSubscriber(js, sysLogger)
		publisher = assistantEvents.NewNatsPublisher(natsPub, sysLogger)
	}

	var rdb *redis.Client
	quotaStore := quotaStoreFor(cfg, db, &rdb)

	// 6. Domain components
	retriever := knowledge.NewRetriever(embeddingProvider, index, sysLogger, cfg.Assistant.RetrievalTimeout)
	resolver := destination.NewResolver(embeddingProvider, index, sysLogger, destination.Options{
		MinSimilarity: cfg.Assistant.DestinationFloor,
		TopN:          cfg.Assistant.DestinationTopN,
		PageMargin:    cfg.Assistant.DestinationMargin,
		Timeout:       cfg.Assistant.RetrievalTimeout,
	})
	classifier := intent.NewClassifier(classifierProvider, intent.Options{
		Model:           cfg.Ai.ClassifierModel,
		ConfidenceFloor: cfg.Assistant.ConfidenceFloor,
		Timeout:         cfg.Assistant.ClassifierTimeout,
	}, llmLogger)
	accessController := access.NewController(quotaStore, access.DefaultPolicy(cfg.Assistant.PremiumDailyCapTier1), sysLogger)
	toolExecutor := tools.NewExecutor(
		retriever,
		resolver,
		sysLogger,
		cfg.Assistant.ToolTimeout,
		cfg.Assistant.KnowledgeLimit,
		cfg.Assistant.KnowledgeFloor,
	)

	// 7. Services
	catalog := service.NewRepositoryCatalog(uowFactory)
	chatService := service.NewChatService(
		service.ChatConfig{
			DefaultModelWidget: cfg.Ai.DefaultModelWidget,
			DefaultModelPage:   cfg.Ai.DefaultModelPage,
			StepBudget:         cfg.Assistant.StepBudget,
			CheckpointInterval: cfg.Assistant.CheckpointInterval,
			PersistTimeout:     5 * time.Second,
		},
		classifier,
		catalog,
		accessController,
		registry,
		toolExecutor,
		service.NewRepositoryTurnStore(uowFactory),
		publisher,
		sysLogger,
	)
	assistantService := service.NewAssistantService(
		implementation.NewAccessStateRepository(db),
		implementation.NewConversationRepository(db),
		catalog,
		accessController,
		resolver,
		retriever,
		service.SearchConfig{
			DefaultLimit:  cfg.Assistant.KnowledgeLimit,
			MaxLimit:      20,
			MinSimilarity: cfg.Assistant.SearchFloor,
		},
		sysLogger,
	)
	indexerService := service.NewIndexerService(pubSub, cfg.App.IndexTopic, uowFactory, embeddingProvider, sysLogger)

	wsHub := websocket.NewHub(sysLogger)

	// 8. Controllers
	return &Container{
		AssistantController: controller.NewAssistantController(
			chatService,
			assistantService,
			indexerService,
			wsHub,
			cfg.Keys.JwtSecret,
			sysLogger,
		),
		IndexerService: indexerService,
		WebSocketHub:   wsHub,
		Logger:         sysLogger,

		natsConn: natsConn,
		natsSub:  natsSub,
		rdb:      rdb,
		pubSub:   pubSub,
	}
}

// NewEmbeddingProvider returns the configured embedder behind a TTL cache.
func NewEmbeddingProvider(cfg *config.Config) embedding.EmbeddingProvider {
	var provider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider != "ollama" {
		gemini, err := embedding.NewGeminiProvider(context.Background(), cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingDimensions)
		if err != nil {
			log.Printf("[WARN] Gemini embeddings unavailable: %v. Using Ollama", err)
		} else {
			provider = gemini
			log.Printf("[INFO] Using Embedding Provider: GEMINI (%d dims)", cfg.Ai.EmbeddingDimensions)
		}
	}
	if provider == nil {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	}
	return embedding.NewCachedProvider(provider, cfg.Assistant.EmbeddingCacheTTL)
}

// quotaStoreFor picks the premium counter backend. Redis falls back to
// Postgres when it cannot be reached.
func quotaStoreFor(cfg *config.Config, db *gorm.DB, rdb **redis.Client) access.QuotaStore {
	switch cfg.Assistant.QuotaBackend {
	case "memory":
		log.Printf("[INFO] Using Quota Store: MEMORY")
		return access.NewMemoryQuotaStore()
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		client := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Using Postgres quota store", err)
			client.Close()
			break
		}
		*rdb = client
		log.Printf("[INFO] Using Quota Store: REDIS")
		return access.NewRedisQuotaStore(client)
	}
	log.Printf("[INFO] Using Quota Store: POSTGRES")
	return implementation.NewAccessStateRepository(db)
}

// StartBackground starts the reindex consumer and the catalog listener.
func (c *Container) StartBackground(ctx context.Context) error {
	if err := c.IndexerService.Consume(ctx); err != nil {
		return err
	}
	if c.natsSub == nil {
		return nil
	}
	cc, err := c.natsSub.Subscribe(ctx, events.CatalogPrefix+">", "assistant-indexer", c.IndexerService.HandleCatalogEvent)
	if err != nil {
		c.Logger.Warn("Bootstrap", "catalog listener not started", map[string]interface{}{"error": err.Error()})
		return nil
	}
	c.catalog = cc
	return nil
}

// Close releases connections in reverse start order.
func (c *Container) Close() {
	c.WebSocketHub.Shutdown()
	if c.catalog != nil {
		c.catalog.Stop()
	}
	if c.pubSub != nil {
		c.pubSub.Close()
	}
	if c.natsConn != nil {
		c.natsConn.Drain()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	c.Logger.Sync()
}
