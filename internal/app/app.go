// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/config"
	"github.com/markdave123-py/learnbridge/internal/core"
	db "github.com/markdave123-py/learnbridge/internal/core/database"
	"github.com/markdave123-py/learnbridge/internal/core/embedding"
	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/learnbridge/internal/core/object-client"
	"github.com/markdave123-py/learnbridge/internal/services"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DBClient  *db.DatabaseClient
	Objects   *objectclient.S3Client
	Embedder  *embedding.Chain
	Pipeline  *ingestion_engine.Pipeline
	Ingestor  *ingestion_engine.Ingestor
	Documents *services.DocumentService
	Server    *Server

	closeEmbedders func() error
}

// NewApp connects the database and object store, builds the provider chain and wires the pipeline and HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	logger.Info("object client initialized and ready", zap.String("bucket", cfg.BucketName))

	chain, closeEmbedders, err := embedding.NewChainFromConfig(appCtx, cfg.Providers, cfg.CallTimeout, logger)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("couldn't initialize the embedding chain: %w", err)
	}
	logger.Info("embedding chain ready", zap.Strings("providers", chain.Providers()))

	extractor, err := newExtractor(cfg)
	if err != nil {
		_ = closeEmbedders()
		_ = dbClient.Close()
		return nil, err
	}

	ingCfg := &ingestion_engine.IngestConfig{
		ChunkMaxChars: cfg.ChunkMaxChars,
		SignedURLTTL:  cfg.SignedURLTTL,
		CallTimeout:   cfg.CallTimeout,
		RunTimeout:    cfg.RunTimeout,
	}
	pipeline := ingestion_engine.NewPipeline(dbClient, objClient, extractor, chain, ingCfg, logger)
	ingestor := ingestion_engine.NewIngestor(pipeline, cfg.QueueSize, logger)
	docs := services.NewDocumentService(dbClient, objClient, ingestor, ingCfg.StaleAfter(), logger)

	server := NewServer(cfg, logger, pipeline, docs, dbClient, chain)

	return &App{
		Config:         cfg,
		Logger:         logger,
		DBClient:       dbClient,
		Objects:        objClient,
		Embedder:       chain,
		Pipeline:       pipeline,
		Ingestor:       ingestor,
		Documents:      docs,
		Server:         server,
		closeEmbedders: closeEmbedders,
	}, nil
}

func newExtractor(cfg *config.Config) (core.TextExtractor, error) {
	client := &http.Client{Timeout: cfg.CallTimeout}
	switch cfg.Extractor {
	case "pdfco":
		return ingestion_engine.NewPDFCoExtractor(client, cfg.PDFCoURL, cfg.PDFCoAPIKey), nil
	case "docconv":
		useReadability := false
		return ingestion_engine.NewDocconvExtractor(client, useReadability), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", cfg.Extractor)
	}
}

// Run starts the background workers and the HTTP server, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	a.Ingestor.Start(workerCtx, a.Config.Workers)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("error during shutdown", zap.Error(err))
	}
	stopWorkers()
	if err := a.Ingestor.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("ingest workers stopped with error", zap.Error(err))
	}
	return serveErr
}

func (a *App) Close() {
	if a.closeEmbedders != nil {
		if err := a.closeEmbedders(); err != nil {
			a.Logger.Warn("closing embedding clients", zap.Error(err))
		}
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
