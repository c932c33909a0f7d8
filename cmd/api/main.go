// Package main is the entry point for the chat API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/internal/cache"
	"github.com/toneill57/innpilot-sub001/internal/catalog"
	"github.com/toneill57/innpilot-sub001/internal/completion"
	"github.com/toneill57/innpilot-sub001/internal/config"
	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/engine"
	"github.com/toneill57/innpilot-sub001/internal/handler"
	"github.com/toneill57/innpilot-sub001/internal/intent"
	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/memory"
	"github.com/toneill57/innpilot-sub001/internal/middleware"
	"github.com/toneill57/innpilot-sub001/internal/model"
	natsclient "github.com/toneill57/innpilot-sub001/internal/nats"
	"github.com/toneill57/innpilot-sub001/internal/retrieval"
	"github.com/toneill57/innpilot-sub001/internal/session"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore/chromem"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore/qdrant"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting chat API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "innpilot-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	checks := make(map[string]handler.Checker)

	// Providers
	policy := llm.RetryPolicy{
		MaxRetries:      cfg.ProviderRetries,
		InitialInterval: llm.DefaultRetryPolicy.InitialInterval,
		MaxInterval:     llm.DefaultRetryPolicy.MaxInterval,
	}
	completionClient, err := newCompletionClient(cfg)
	if err != nil {
		return err
	}
	llmClient := llm.WithRetry(completionClient, policy)

	openaiClient, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	embedder, err := embedding.NewProvider(
		llm.EmbedderWithRetry(openaiClient.WithEmbeddingModel(cfg.EmbeddingModel), policy),
		embedding.Dimensions{
			model.TierFast:     cfg.TierFastDims,
			model.TierBalanced: cfg.TierMidDims,
			model.TierFull:     cfg.TierFullDims,
		},
	)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	// Collection catalog
	var cat catalog.Catalog = catalog.Default()
	if cfg.SupabaseURL != "" {
		sb, err := catalog.NewSupabase(catalog.SupabaseConfig{
			URL:      cfg.SupabaseURL,
			APIKey:   cfg.SupabaseKey,
			CacheTTL: cfg.CatalogCacheTTL,
		}, cat, log)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		cat = sb
	}

	// Vector store
	store, err := newVectorStore(ctx, cfg, embedder.Dims(), checks)
	if err != nil {
		return err
	}
	defer store.Close()

	// Redis backs the shared cache, sessions and guard.
	var rdb *redis.Client
	if cfg.UseRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	deps := engine.Deps{
		Extractor: intent.NewFastPath(
			intent.NewKeyword(time.Now),
			intent.NewLLM(llmClient, cfg.ExtractionModel, time.Now, log),
		),
		Embedder: embedder,
		Retriever: retrieval.New(store, cat, retrieval.Config{
			Threshold:          cfg.SimilarityThreshold,
			PerCollectionLimit: cfg.CollectionLimit,
			MaxDocs:            cfg.MaxContextDocs,
			MaxChars:           cfg.MaxContextChars,
			CollectionTimeout:  cfg.CollectionTimeout,
			EscalateOnEmpty:    cfg.EscalateOnEmpty,
		}, log),
		Memory: memory.New(store, memory.Options{
			Tier:            model.TierBalanced,
			Limit:           cfg.RecallLimit,
			Threshold:       cfg.RecallThreshold,
			StaffTenantWide: cfg.RecallStaffWide,
		}),
		Completer: completion.New(llmClient, completion.Config{
			Model:            cfg.CompletionModel,
			MaxTokens:        cfg.MaxTokens,
			Temperature:      cfg.Temperature,
			PromptTokenLimit: cfg.PromptTokenLimit,
			RecentTurns:      cfg.RecentTurns,
		}, log),
	}

	// Sessions
	sessionOpts := session.Options{TTL: cfg.SessionTTL, RetainedTurns: cfg.SessionRetainedTurns}
	if cfg.SessionBackend == "redis" {
		deps.Sessions = session.NewRedisStore(rdb, sessionOpts)
		deps.Guard = session.NewRedisGuard(rdb, cfg.TurnTimeout+10*time.Second)
	} else {
		sessions := session.NewMemory(sessionOpts)
		defer sessions.Close()
		deps.Sessions = sessions
		deps.Guard = session.NewMemoryGuard()
	}

	// Response cache
	switch cfg.CacheBackend {
	case "redis":
		deps.Cache = cache.NewRedis(rdb)
	case "none":
	default:
		mc := cache.NewMemory(time.Minute)
		defer mc.Close()
		deps.Cache = mc
	}

	// Durable turn log
	if cfg.TurnLogEnabled {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Close()

		turnLog := natsclient.NewTurnLog(nc, cfg.TurnLogMaxAge)
		if err := turnLog.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure turn log stream: %w", err)
		}
		deps.TurnLog = turnLog
		checks["nats"] = nc.Ping
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.CacheTTL = cfg.CacheTTL
	engineCfg.TurnTimeout = cfg.TurnTimeout
	engineCfg.MaxMessageRunes = middleware.MaxMessageRunes
	engineCfg.MaxIDLength = middleware.MaxIDLength

	eng, err := engine.New(deps, engineCfg, log)
	if err != nil {
		return err
	}

	janitor := session.NewJanitor(deps.Sessions, cfg.SessionSweepInterval, log, eng.Expired)
	go janitor.Run(ctx)

	// Handlers
	healthHandler := handler.NewHealthHandler(checks)
	chatHandler := handler.NewChatHandler(eng, log)
	sessionHandler := handler.NewSessionHandler(eng, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	// Authenticated guest and staff chat
	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/turns", chatHandler.Send)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)
			r.Get("/history", sessionHandler.History)
			r.Get("/history/stream", sessionHandler.Stream)
		})
	})

	// Anonymous public chat
	r.Route("/public/v1/{tenant}", func(r chi.Router) {
		r.Use(middleware.Public("tenant"))
		r.Use(middleware.PublicRateLimit(cfg.PublicRateLimitRequests, cfg.RateLimitWindow))

		r.Post("/turns", chatHandler.Send)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

// newCompletionClient picks the completion provider, preferring DEFAULT_LLM
// when its key is present.
func newCompletionClient(cfg *config.Config) (llm.Client, error) {
	provider := llm.Provider(cfg.DefaultLLM)
	switch {
	case provider == llm.ProviderOpenAI && cfg.OpenAIAPIKey != "":
		return llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		return llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		return llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	return nil, errors.New("no completion provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
}

// newVectorStore opens the configured vector store. Qdrant collections are
// created for every catalog collection and for conversation memory.
func newVectorStore(ctx context.Context, cfg *config.Config, dims embedding.Dimensions, checks map[string]handler.Checker) (vectorstore.Store, error) {
	switch cfg.VectorStore {
	case "qdrant":
		qs, err := qdrant.New(qdrant.Config{
			URL:              cfg.QdrantURL,
			APIKey:           cfg.QdrantAPIKey,
			CollectionPrefix: cfg.QdrantCollPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		collections, _ := catalog.Default().Collections(ctx, "")
		names := []string{memory.Collection}
		for _, c := range collections {
			names = append(names, c.Name)
		}
		for _, name := range names {
			if err := qs.EnsureCollection(ctx, name, dims); err != nil {
				qs.Close()
				return nil, err
			}
		}
		checks["qdrant"] = qs.Ping
		return qs, nil
	default:
		if cfg.VectorStorePath != "" {
			return chromem.NewPersistent(cfg.VectorStorePath)
		}
		return chromem.New(), nil
	}
}
