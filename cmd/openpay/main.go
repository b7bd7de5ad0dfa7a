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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/chunker"
	"github.com/JohnsonChin1009/open-pay/internal/config"
	dbRedis "github.com/JohnsonChin1009/open-pay/internal/db/redis"
	logpkg "github.com/JohnsonChin1009/open-pay/internal/logger"
	"github.com/JohnsonChin1009/open-pay/internal/metrics"
	"github.com/JohnsonChin1009/open-pay/internal/repository/corpus"
	"github.com/JohnsonChin1009/open-pay/internal/repository/embcache"
	ledgerrepo "github.com/JohnsonChin1009/open-pay/internal/repository/ledger"
	chiTransport "github.com/JohnsonChin1009/open-pay/internal/transport/chi"
	openaiTransport "github.com/JohnsonChin1009/open-pay/internal/transport/openai"
	answeruc "github.com/JohnsonChin1009/open-pay/internal/usecase/answer"
	chatuc "github.com/JohnsonChin1009/open-pay/internal/usecase/chat"
	healthuc "github.com/JohnsonChin1009/open-pay/internal/usecase/health"
	ingestuc "github.com/JohnsonChin1009/open-pay/internal/usecase/ingest"
	reportuc "github.com/JohnsonChin1009/open-pay/internal/usecase/report"
	searchuc "github.com/JohnsonChin1009/open-pay/internal/usecase/search"
)

func main() {
	// .env is optional; real deployments set variables directly
	_ = godotenv.Load()

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

	logger.Info("Starting openpay assistant API server",
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("ledger_path", cfg.Ledger.Path),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create corpus store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Corpus store not ready", zap.Error(err))
	}
	logger.Info("Connected to corpus store")

	ledger, err := ledgerrepo.Open(cfg.Ledger.Path)
	if err != nil {
		logger.Fatal("Failed to open ledger", zap.Error(err))
	}
	defer func() { _ = ledger.Close() }()

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	corpusRepo := corpus.New(store)
	if err := corpusRepo.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	// Embedder chain: OpenAI provider wrapped in the Redis-backed cache.
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		MaxRetries: cfg.Embedding.MaxRetries,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	ingestSvc := ingestuc.New(corpusRepo, embedder, chunker.Default(), logger)
	reportSvc := reportuc.New(ledger, ingestSvc, logger)
	searchSvc := searchuc.New(corpusRepo, logger)
	answerSvc := answeruc.New(generator, cfg.Assembler.MaxContextChars, logger)
	chatSvc := chatuc.New(embedder, searchSvc, reportSvc, answerSvc, corpusRepo, chatuc.Config{
		TopK:          cfg.Search.TopK,
		MinScore:      cfg.Search.MinScore,
		MaxPnLReports: cfg.Assembler.MaxPnLReports,
	}, logger)
	healthSvc := healthuc.New(store, ledger, baseEmbedder, embedder, corpusRepo)

	if cfg.Ingest.SeedOnStart {
		seedCorpus(ctx, ingestSvc, cfg.Ingest.DocsDir, logger)
	}

	server := chiTransport.NewServer(chatSvc, ingestSvc, reportSvc, ledger, healthSvc, logger)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// seedCorpus loads the docs directory at startup, skipping files that were
// already ingested. Seed failures never prevent the server from serving.
func seedCorpus(ctx context.Context, ingest *ingestuc.Service, dir string, logger *zap.Logger) {
	res, err := ingest.Seed(ctx, dir)
	if err != nil {
		logger.Warn("Seed ingestion failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	logger.Info("Seed ingestion finished",
		zap.String("dir", dir),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
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
