// Command assistantctl seeds and inspects the assistant's routing data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-assistant-be/internal/bootstrap"
	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/internal/seed"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/database"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/rag/destination"
	"ai-assistant-be/pkg/rag/knowledge"
	"ai-assistant-be/pkg/vectorindex"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var (
	verbose bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "assistantctl",
	Short: "Seed and inspect the assistant routing core",
	Long: `assistantctl loads catalog and destination data, rebuilds embeddings,
and runs the resolver and knowledge search against the live index.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stdout")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds what the subcommands share. Everything runs in-process; no
// NATS or Redis is needed.
type env struct {
	cfg        *config.Config
	db         *gorm.DB
	log        logger.ILogger
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	index      vectorindex.SimilarityIndex
}

func openEnv() (*env, error) {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	opts := database.DefaultOptions()
	opts.MaxOpenConns = 8
	if !verbose {
		opts.LogLevel = gormLogger.Silent
	}
	db, err := database.Open(cfg.Database.Connection, opts)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	var log logger.ILogger = logger.NewNop()
	if verbose {
		log = logger.NewZapLogger(cfg.App.LogFilePath, false)
	}

	return &env{
		cfg:        cfg,
		db:         db,
		log:        log,
		uowFactory: unitofwork.NewRepositoryFactory(db),
		embedder:   bootstrap.NewEmbeddingProvider(cfg),
		index:      vectorindex.NewPgVectorIndex(db),
	}, nil
}

// openSeedEnv embeds a seed file into memory instead of opening the
// database. Only resolve and search work against it.
func openSeedEnv(ctx context.Context, path string) (*env, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	file, err := seed.Load(fh)
	if err != nil {
		return nil, err
	}

	cfg := config.Load()
	e := &env{cfg: cfg, log: logger.NewNop(), embedder: bootstrap.NewEmbeddingProvider(cfg)}
	if verbose {
		e.log = logger.NewZapLogger(cfg.App.LogFilePath, false)
	}
	idx, err := seed.BuildIndex(ctx, e.embedder, file)
	if err != nil {
		return nil, fmt.Errorf("embed seed file: %w", err)
	}
	e.index = idx
	return e, nil
}

func (e *env) indexer() service.IIndexerService {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	return service.NewIndexerService(pubSub, e.cfg.App.IndexTopic, e.uowFactory, e.embedder, e.log)
}

func (e *env) resolver() *destination.Resolver {
	return destination.NewResolver(e.embedder, e.index, e.log, destination.Options{
		MinSimilarity: e.cfg.Assistant.DestinationFloor,
		TopN:          e.cfg.Assistant.DestinationTopN,
		PageMargin:    e.cfg.Assistant.DestinationMargin,
		Timeout:       e.cfg.Assistant.RetrievalTimeout,
	})
}

func (e *env) retriever() *knowledge.Retriever {
	return knowledge.NewRetriever(e.embedder, e.index, e.log, e.cfg.Assistant.RetrievalTimeout)
}

func (e *env) close() {
	if e.db != nil {
		if sqlDB, err := e.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	e.log.Sync()
}
