package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/answer"
	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/dataset"
	historypostgres "github.com/askdb/askdb/internal/history/postgres"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/pipeline"
	s3store "github.com/askdb/askdb/internal/storage/s3"
	"github.com/askdb/askdb/internal/warehouse/duckdb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{
		DSN:             cfg.History.DSN,
		MaxOpenConns:    cfg.History.MaxOpenConns,
		MaxIdleConns:    cfg.History.MaxIdleConns,
		ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.History.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open history db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = historyDB.Close() }()
	historyStore := historypostgres.NewStore(historyDB)

	warehouseStore, err := duckdb.Open(duckdb.Config{
		Path:         cfg.Warehouse.Path,
		RowLimit:     cfg.Pipeline.RowLimit,
		QueryTimeout: cfg.Pipeline.QueryTimeout,
	})
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = warehouseStore.Close() }()

	if cfg.Dataset.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Dataset.Endpoint,
			Region:           cfg.Dataset.Region,
			Bucket:           cfg.Dataset.Bucket,
			AccessKeyID:      cfg.Dataset.AccessKeyID,
			SecretAccessKey:  cfg.Dataset.SecretAccessKey,
			UseSSL:           cfg.Dataset.UseSSL,
			Prefix:           cfg.Dataset.Prefix,
			AutoCreateBucket: cfg.Dataset.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		stageDir := filepath.Join(os.TempDir(), "askdb-datasets")
		loader, err := dataset.NewLoader(logger, objectStore, warehouseStore, stageDir)
		if err != nil {
			logger.Error("failed to initialize dataset loader", slog.Any("error", err))
			os.Exit(1)
		}
		loadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		loads, err := loader.Load(loadCtx)
		cancel()
		if err != nil {
			logger.Error("failed to load datasets", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("datasets loaded", slog.Int("tables", len(loads)))
	}

	completionClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	synthesizer, err := answer.NewSynthesizer(completionClient, cfg.Pipeline.AnswerMaxRows)
	if err != nil {
		logger.Error("failed to initialize synthesizer", slog.Any("error", err))
		os.Exit(1)
	}

	service, err := pipeline.NewService(pipeline.Dependencies{
		Logger:       logger,
		Introspector: warehouseStore,
		Executor:     warehouseStore,
		Store:        historyStore,
		Generator:    nl2sql.NewGenerator(completionClient),
		Synthesizer:  synthesizer,
	}, cfg.Pipeline, cfg.AI.MaxRetries)
	if err != nil {
		logger.Error("failed to initialize pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:   logger,
		Pipeline: service,
		Readiness: api.CombineReadinessChecks(
			api.CheckHistoryStore(historyStore),
			api.CheckWarehouse(warehouseStore.HealthCheck),
		),
		DependencyTimeout: time.Second,
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
