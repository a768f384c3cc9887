package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/config"
	"github.com/harborview/mmrag/internal/db/opensearch"
	dbRedis "github.com/harborview/mmrag/internal/db/redis"
	"github.com/harborview/mmrag/internal/domain"
	logpkg "github.com/harborview/mmrag/internal/logger"
	"github.com/harborview/mmrag/internal/metrics"
	"github.com/harborview/mmrag/internal/repository/embcache"
	indexrepo "github.com/harborview/mmrag/internal/repository/index"
	s3storage "github.com/harborview/mmrag/internal/storage/s3"
	bedrockTransport "github.com/harborview/mmrag/internal/transport/bedrock"
	chiTransport "github.com/harborview/mmrag/internal/transport/chi"
	openaiEmb "github.com/harborview/mmrag/internal/transport/openai"
	answeruc "github.com/harborview/mmrag/internal/usecase/answer"
	healthuc "github.com/harborview/mmrag/internal/usecase/health"
	queryuc "github.com/harborview/mmrag/internal/usecase/query"
	"github.com/harborview/mmrag/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mmrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index", cfg.OpenSearch.Index),
		zap.String("text_provider", cfg.Embedding.TextProvider),
	)

	ctx := context.Background()

	store, err := opensearch.NewStore(ctx, opensearch.Config{
		Endpoint:   cfg.OpenSearch.Endpoint,
		Index:      cfg.OpenSearch.Index,
		Username:   cfg.OpenSearch.Username,
		Password:   cfg.OpenSearch.Password,
		AWSService: cfg.OpenSearch.AWSService,
		Region:     cfg.OpenSearch.Region,
		Timeout:    time.Duration(cfg.OpenSearch.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}

	// One-shot maintenance commands exit before the server starts.
	if len(os.Args) > 1 {
		runCommand(ctx, os.Args[1], store, logger)
		return
	}

	if err := store.Ping(ctx); err != nil {
		logger.Warn("Index store not reachable at startup", zap.Error(err))
	} else {
		logger.Info("Connected to index store")
	}

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	bedrockClient, err := bedrockTransport.NewClient(
		ctx, cfg.Models.Region, time.Duration(cfg.Models.TimeoutSec)*time.Second,
	)
	if err != nil {
		logger.Fatal("Failed to create model client", zap.Error(err))
	}

	// Optional embedding cache
	var cacheStore *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	textEmb, mmEmb := buildEmbedders(cfg, bedrockClient, cacheStore, logger)

	var reranker queryuc.Reranker
	if !cfg.Retrieval.RerankDisabled {
		reranker = bedrockTransport.NewReranker(bedrockClient, cfg.Models.Rerank, logger)
	}

	generator := bedrockTransport.NewGenerator(
		bedrockClient, cfg.Models.Answer, cfg.Models.AnswerMaxTokens, logger,
	)

	// Pass nil interface (not typed nil pointer!) if storage is not configured.
	var assets answeruc.AssetFetcher
	if cfg.Storage.Bucket != "" {
		fetcher, err := s3storage.NewFetcher(ctx, cfg.Storage.Region, cfg.Storage.Bucket)
		if err != nil {
			logger.Fatal("Failed to create asset fetcher", zap.Error(err))
		}
		assets = fetcher
	}

	repo := indexrepo.New(store, logger)

	synth := answeruc.New(generator, assets, answeruc.Options{
		SnippetChars: cfg.Retrieval.SnippetChars,
	}, logger)

	pipeline := queryuc.New(repo, textEmb, mmEmb, reranker, synth, queryuc.Options{
		TextK:      cfg.Retrieval.TextK,
		ImageK:     cfg.Retrieval.ImageK,
		CandidateK: cfg.Retrieval.CandidateK,
	}, logger)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(textEmb), &indexStats{store})

	server := chiTransport.NewServer(pipeline, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// runCommand executes a one-shot maintenance command against the index.
func runCommand(ctx context.Context, cmd string, store *opensearch.Store, logger *zap.Logger) {
	switch cmd {
	case "setup-index":
		if err := store.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to create index", zap.Error(err))
		}
		logger.Info("Index ready", zap.String("index", store.Index()))
	case "delete-index":
		if err := store.DeleteIndex(ctx); err != nil {
			logger.Fatal("Failed to delete index", zap.Error(err))
		}
		logger.Info("Index deleted", zap.String("index", store.Index()))
	default:
		logger.Fatal("Unknown command", zap.String("command", cmd))
	}
}

// buildEmbedders assembles the embedder chains: provider -> cached.
func buildEmbedders(
	cfg config.Config,
	client *bedrockTransport.Client,
	cacheStore *dbRedis.Store,
	logger *zap.Logger,
) (domain.TextEmbedder, domain.MultimodalEmbedder) {
	var textEmb domain.TextEmbedder
	switch cfg.Embedding.TextProvider {
	case "openai":
		textEmb = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
	default:
		textEmb = bedrockTransport.NewTextEmbedder(client, cfg.Models.TextEmbedding, logger)
	}

	var mmEmb domain.MultimodalEmbedder = bedrockTransport.NewMultimodalEmbedder(
		client, cfg.Models.Multimodal, logger,
	)

	if cacheStore != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		textEmb = embcache.NewText(textEmb, cacheStore, ttl, metrics.EmbeddingCacheTotal, logger)
		mmEmb = embcache.NewMultimodal(mmEmb, cacheStore, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	return textEmb, mmEmb
}

// embeddingHealthChecker adapts an embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.TextEmbedder
}

func newEmbeddingHealthChecker(embedder domain.TextEmbedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// indexStats adapts the index store's stats to the health report shape.
type indexStats struct {
	store *opensearch.Store
}

func (a *indexStats) Stats(ctx context.Context) (healthuc.IndexInfo, error) {
	st, err := a.store.Stats(ctx)
	if err != nil {
		return healthuc.IndexInfo{}, fmt.Errorf("index stats: %w", err)
	}
	return healthuc.IndexInfo{DocCount: st.DocCount, StoreSize: st.StoreSize}, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
