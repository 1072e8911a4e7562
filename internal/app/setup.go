package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/kabinet-ai/kabinet/db"
	"github.com/kabinet-ai/kabinet/internal/backoff"
	"github.com/kabinet-ai/kabinet/internal/config"
	"github.com/kabinet-ai/kabinet/internal/embed"
	"github.com/kabinet-ai/kabinet/internal/extract"
	"github.com/kabinet-ai/kabinet/internal/kb"
	"github.com/kabinet-ai/kabinet/internal/remote"
	"github.com/kabinet-ai/kabinet/internal/remote/disk"
	"github.com/kabinet-ai/kabinet/internal/remote/localfs"
	"github.com/kabinet-ai/kabinet/internal/store"
)

// Setup creates and initializes the application. Call Close on the returned
// App to release resources.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	batcher := embed.NewBatcher(embed.NewGenkit(embedder), embed.BatcherConfig{
		BatchSize: cfg.EmbedBatchSize,
		Dim:       cfg.EmbeddingDim,
		Retry:     backoff.DefaultConfig(),
	}, logger)

	a.Source = provideSource(cfg)
	a.Store = store.New(pool, logger)

	a.Indexer = kb.NewIndexer(a.Source, extract.NewRegistry(), batcher, a.Store, kb.IndexerConfig{
		Root:         cfg.RemoteRoot,
		Recursive:    cfg.RemoteRecursive,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Workers:      cfg.SyncWorkers,
		Passphrases:  cfg.Passphrases,
		Retry:        backoff.DefaultConfig(),
		LockPath:     cfg.SyncLockPath,
	}, logger)

	a.Retriever = kb.NewRetriever(batcher, a.Store, kb.RetrieverConfig{
		TopK:             cfg.TopK,
		MaxContextTokens: cfg.MaxContextTokens,
		MinSimilarity:    float64(cfg.MinSimilarity),
	}, logger)

	return a, nil
}

// provideDBPool runs migrations and opens a connection pool with sensible
// defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	// Vector columns need the pgvector codec on every connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	return g, nil
}

// provideEmbedder resolves the configured embedding model. Both the gemini
// and googleai providers ride on the GoogleAI plugin; they differ only in
// which API key the plugin picks up.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideSource picks the corpus backend: Yandex Disk when an OAuth token is
// configured, the local filesystem otherwise.
func provideSource(cfg *config.Config) remote.Source {
	if cfg.RemoteToken != "" {
		return disk.New(cfg.RemoteToken)
	}
	return localfs.New()
}
