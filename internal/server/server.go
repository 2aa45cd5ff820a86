// Package server wires configuration into the running application: stores,
// event bus, LLM drivers, search, tools, agent, HTTP router, and lifecycle.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/askdb-ai/askdb/internal/api"
	"github.com/askdb-ai/askdb/internal/domain/agent"
	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/retrieval"
	"github.com/askdb-ai/askdb/internal/domain/schema"
	"github.com/askdb-ai/askdb/internal/domain/sqlguard"
	"github.com/askdb-ai/askdb/internal/domain/tool"
	"github.com/askdb-ai/askdb/internal/infra/config"
	"github.com/askdb-ai/askdb/internal/infra/eventbus"
	"github.com/askdb-ai/askdb/internal/infra/sqlite"
	"github.com/askdb-ai/askdb/internal/llm"
	"github.com/askdb-ai/askdb/internal/search"
)

const (
	readTimeout = 15 * time.Second
	idleTimeout = 60 * time.Second
)

// Server owns the application's long-lived resources and the HTTP listener.
type Server struct {
	cfg    config.Config
	logger *slog.Logger

	storeDB *sql.DB
	dataDB  *sql.DB
	bus     eventbus.EventBus
	learner *knowledge.Learner
	indexer *search.Indexer
	http    *http.Server
}

// New constructs the full application from one Config value: it opens and
// migrates the knowledge store, opens the data connection, builds the LLM
// driver stack, the search driver, the tool registry and the agent, and
// registers the HTTP routes. Nothing starts running until Start.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	storeDB, err := sqlite.NewDB(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("server: open knowledge store: %w", err)
	}
	if err := sqlite.MigrateUp(storeDB); err != nil {
		storeDB.Close() //nolint:errcheck
		return nil, fmt.Errorf("server: migrate knowledge store: %w", err)
	}

	dataDB, err := sqlite.NewDB(cfg.DataPath)
	if err != nil {
		storeDB.Close() //nolint:errcheck
		return nil, fmt.Errorf("server: open data connection: %w", err)
	}

	bus := eventbus.New()
	store := knowledge.NewStore(storeDB, bus)

	driver, embedder, err := buildDrivers(cfg)
	if err != nil {
		storeDB.Close() //nolint:errcheck
		dataDB.Close()  //nolint:errcheck
		return nil, err
	}

	searcher := search.NewDriver(cfg, storeDB, store, "sqlite", embedder, logger)
	introspector := schema.New(dataDB, "sqlite")
	guard := sqlguard.New(cfg.AllowedStatements, cfg.ForbiddenKeywords)

	registry := tool.NewRegistry()
	registry.Register(tool.NewRunSQL(dataDB, guard, bus, cfg.MaxRows, cfg.DataConnection))
	registry.Register(tool.NewIntrospectSchema(introspector))
	registry.Register(tool.NewSearchKnowledge(searcher))
	registry.Register(tool.NewSaveLearning(store, cfg.LearningEnabled))
	registry.Register(tool.NewSaveValidatedQuery(store, guard, cfg.LearningEnabled))

	builder := retrieval.NewBuilder(store, searcher, introspector,
		retrieval.BuilderConfig{
			LearningEnabled: cfg.LearningEnabled,
			CustomIndexes:   cfg.CustomIndexes,
		}, logger)

	if cfg.SemanticModelPath != "" {
		if err := importSemanticModel(cfg.SemanticModelPath, store); err != nil {
			storeDB.Close() //nolint:errcheck
			dataDB.Close()  //nolint:errcheck
			return nil, err
		}
		logger.Info("semantic model imported", "path", cfg.SemanticModelPath)
	}

	ag := agent.New(driver, registry, builder, cfg.MaxIterations, cfg.DataConnection, logger)

	router := api.NewRouter(api.Deps{
		Agent:         ag,
		Store:         store,
		Searcher:      searcher,
		Introspector:  introspector,
		APISecretHash: cfg.APISecretHash,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		Handler:     router,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
		// No WriteTimeout: SSE responses and long agent runs outlive any
		// fixed write deadline.
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		storeDB: storeDB,
		dataDB:  dataDB,
		bus:     bus,
		learner: knowledge.NewLearner(store, cfg.LearningEnabled, logger),
		indexer: search.NewIndexer(searcher, logger),
		http:    httpServer,
	}, nil
}

// Start launches the background consumers and blocks serving HTTP until the
// listener fails or is shut down.
func (s *Server) Start(ctx context.Context) error {
	go s.learner.Start(ctx, s.bus)
	go s.indexer.Start(ctx, s.bus)

	s.logger.Info("http server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and closes both databases.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := s.dataDB.Close(); err != nil {
		return fmt.Errorf("server: close data connection: %w", err)
	}
	if err := s.storeDB.Close(); err != nil {
		return fmt.Errorf("server: close knowledge store: %w", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// buildDrivers constructs the LLM driver stack and picks the chat driver and
// the embedder. Anthropic has no embeddings endpoint, so embedding falls back
// to the local Ollama driver there.
func buildDrivers(cfg config.Config) (llm.Driver, search.Embedder, error) {
	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second

	ollama := llm.NewOllamaDriver(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.EmbedModel, cfg.Temperature, timeout)
	openai := llm.NewOpenAIDriver(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.EmbedModel, cfg.Temperature, timeout)
	anthropic := llm.NewAnthropicDriver(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.Temperature, timeout)

	manager := llm.NewManager(map[string]llm.Driver{
		"ollama":    ollama,
		"openai":    openai,
		"anthropic": anthropic,
	}, cfg.LLMDriver)

	driver, err := manager.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("server: select llm driver: %w", err)
	}

	var embedder search.Embedder = ollama
	if cfg.LLMDriver == "openai" {
		embedder = openai
	}
	return driver, embedder, nil
}

// importSemanticModel bootstraps curated table metadata and business rules
// from a YAML file. Import is idempotent, so re-running at every startup is
// safe.
func importSemanticModel(path string, store *knowledge.Store) error {
	model, err := retrieval.LoadSemanticModel(path)
	if err != nil {
		return fmt.Errorf("server: load semantic model: %w", err)
	}
	if err := retrieval.ImportSemanticModel(context.Background(), store, model); err != nil {
		return fmt.Errorf("server: import semantic model: %w", err)
	}
	return nil
}
