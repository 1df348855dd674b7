package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/docchat/internal/checkpoint"
	"github.com/raphaelgruber/docchat/internal/config"
	"github.com/raphaelgruber/docchat/internal/db"
	"github.com/raphaelgruber/docchat/internal/docstore"
	"github.com/raphaelgruber/docchat/internal/graph"
	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/llm"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/parser"
	"github.com/raphaelgruber/docchat/internal/retry"
	"github.com/raphaelgruber/docchat/internal/service"
	"github.com/raphaelgruber/docchat/internal/tools"
	"github.com/raphaelgruber/docchat/internal/websearch"
)

// app holds the components built from configuration for one invocation.
// Expensive parts (model, embedder, backends) are created on first use.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	docs     *docstore.FS
	dbClient *db.Client
	embedder *llm.Embedder
	model    *llm.Model
	indexes  index.Store
	store    checkpoint.Store
	locker   checkpoint.Locker

	closers []func(ctx context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, mc *metrics.Collector) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: mc,
		docs:    docstore.NewFS(cfg.DataDir, logger),
	}

	if cfg.NeedsSurrealDB() {
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.dbClient = client
		a.closers = append(a.closers, client.Close)

		if err := client.InitSchema(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}
	return a, nil
}

// Close releases every backend the app opened.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to close backend", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Timeout = a.cfg.CallTimeout
	p.MaxRetries = a.cfg.MaxRetries
	p.Logger = a.logger
	return p
}

func (a *app) getEmbedder() (*llm.Embedder, error) {
	if a.embedder == nil {
		e, err := llm.NewEmbedder(a.cfg, a.logger, a.metrics)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		a.embedder = e
	}
	return a.embedder, nil
}

func (a *app) getModel(ctx context.Context) (*llm.Model, error) {
	if a.model == nil {
		m, err := llm.NewModel(ctx, a.cfg, a.logger, a.metrics)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		a.model = m
	}
	return a.model, nil
}

func (a *app) indexStore() index.Store {
	if a.indexes == nil {
		switch a.cfg.IndexBackend {
		case config.BackendSurrealDB:
			a.indexes = db.NewIndexStore(a.dbClient)
		default:
			a.indexes = index.NewFileStore(a.cfg.DataDir)
		}
	}
	return a.indexes
}

func (a *app) checkpoints(ctx context.Context) (checkpoint.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	switch a.cfg.CheckpointBackend {
	case config.BackendSurrealDB:
		a.store = db.NewCheckpointStore(a.dbClient)
	case config.BackendPostgres:
		pg, err := checkpoint.NewPostgresStore(ctx, a.cfg.PostgresDSN, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pg.Close(); return nil })
		a.store = pg
	default:
		a.store = checkpoint.NewMemoryStore()
	}
	return a.store, nil
}

func (a *app) threadLocker(ctx context.Context) (checkpoint.Locker, error) {
	if a.locker != nil {
		return a.locker, nil
	}
	switch a.cfg.LockBackend {
	case config.BackendRedis:
		rl, err := checkpoint.NewRedisLocker(ctx, a.cfg.RedisURL, a.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return rl.Close() })
		a.locker = rl
	default:
		a.locker = checkpoint.NewMemoryLocker()
	}
	return a.locker, nil
}

// searcher returns nil when no search API key is configured, which
// disables search_tool.
func (a *app) searcher() (websearch.Searcher, error) {
	if a.cfg.SearchAPIKey == "" {
		a.logger.Debug("web search disabled: no API key")
		return nil, nil
	}
	return websearch.New(a.cfg.SearchProvider, a.cfg.SearchAPIKey)
}

func (a *app) indexService() (*service.IndexService, error) {
	embedder, err := a.getEmbedder()
	if err != nil {
		return nil, err
	}
	indexer := index.NewIndexer(a.docs, embedder, a.indexStore(), index.Options{
		Chunk:       parser.ChunkConfig{Size: a.cfg.ChunkSize, Overlap: a.cfg.ChunkOverlap},
		BatchSize:   a.cfg.EmbedBatchSize,
		Concurrency: a.cfg.EmbedConcurrency,
	}, a.logger, a.metrics)
	return service.NewIndexService(a.docs, indexer, a.logger), nil
}

func (a *app) turnController(ctx context.Context) (*service.TurnController, error) {
	embedder, err := a.getEmbedder()
	if err != nil {
		return nil, err
	}
	model, err := a.getModel(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.checkpoints(ctx)
	if err != nil {
		return nil, err
	}
	locker, err := a.threadLocker(ctx)
	if err != nil {
		return nil, err
	}
	searcher, err := a.searcher()
	if err != nil {
		return nil, err
	}

	deps := tools.Dependencies{
		Retriever:     index.NewRetriever(embedder, a.indexStore(), a.logger, a.metrics),
		Documents:     a.docs,
		Searcher:      searcher,
		Model:         model,
		RetrieveK:     a.cfg.RetrieveK,
		SearchResults: a.cfg.SearchResults,
		Policy:        a.policy(),
		Logger:        a.logger,
		Metrics:       a.metrics,
	}
	opts := graph.Options{
		MaxSteps:        a.cfg.MaxSteps,
		DeadlockPolicy:  graph.DeadlockPolicy(a.cfg.DeadlockPolicy),
		DeadlockRetries: a.cfg.DeadlockRetries,
	}
	return service.NewTurnController(deps, model, store, locker, opts, a.logger, a.metrics)
}

// threads returns thread access without building a model or embedder.
func (a *app) threads(ctx context.Context) (*service.Threads, error) {
	store, err := a.checkpoints(ctx)
	if err != nil {
		return nil, err
	}
	locker, err := a.threadLocker(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewThreads(store, locker, a.logger), nil
}
