package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querytalk/querytalk/internal/api"
	catalogpostgres "github.com/querytalk/querytalk/internal/catalog/postgres"
	"github.com/querytalk/querytalk/internal/config"
	"github.com/querytalk/querytalk/internal/llm"
	"github.com/querytalk/querytalk/internal/observability"
	"github.com/querytalk/querytalk/internal/pipeline"
	"github.com/querytalk/querytalk/internal/schema"
	"github.com/querytalk/querytalk/internal/session"
	s3store "github.com/querytalk/querytalk/internal/storage/s3"
	"github.com/querytalk/querytalk/internal/tokens"
	duckdbwarehouse "github.com/querytalk/querytalk/internal/warehouse/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("querytalk-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	catalogDB, err := catalogpostgres.Open(context.Background(), catalogpostgres.DBConfig{
		DSN:             cfg.Catalog.DSN,
		MaxOpenConns:    cfg.Catalog.MaxOpenConns,
		MaxIdleConns:    cfg.Catalog.MaxIdleConns,
		ConnMaxIdleTime: cfg.Catalog.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Catalog.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open catalog db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = catalogDB.Close() }()

	catalogRepo := catalogpostgres.NewRepository(catalogDB)
	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	warehouseEngine, err := duckdbwarehouse.NewEngine(catalogRepo, objectStore, cfg.Dataset.Name)
	if err != nil {
		logger.Error("failed to initialize warehouse engine", slog.Any("error", err))
		os.Exit(1)
	}
	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}
	counter, err := tokens.NewCounter()
	if err != nil {
		logger.Error("failed to initialize token counter", slog.Any("error", err))
		os.Exit(1)
	}
	sessions, err := session.NewStore(cfg.Conversation.HistoryTurns)
	if err != nil {
		logger.Error("failed to initialize session store", slog.Any("error", err))
		os.Exit(1)
	}
	schemaProvider, err := schema.NewProvider(warehouseEngine, cfg.Conversation.SchemaTTL)
	if err != nil {
		logger.Error("failed to initialize schema provider", slog.Any("error", err))
		os.Exit(1)
	}

	conversationPipeline, err := pipeline.New(pipeline.Config{
		Logger:    logger,
		Schema:    schemaProvider,
		Sessions:  sessions,
		LLM:       llmClient,
		Warehouse: warehouseEngine,
		Counter:   counter,
		Limits: pipeline.Limits{
			MaxBytesScanned:    cfg.Safety.MaxBytesScanned,
			QueryTimeout:       cfg.Safety.QueryTimeout,
			MaxResultRows:      cfg.Safety.MaxResultRows,
			ContextTokenBudget: cfg.Conversation.ContextTokenBudget,
			RetryBackoff:       cfg.Safety.RetryBackoff,
		},
	})
	if err != nil {
		logger.Error("failed to initialize pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Readiness:         catalogRepo.HealthCheck,
		DependencyTimeout: time.Second,
		Pipeline:          conversationPipeline,
		Sessions:          sessions,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
