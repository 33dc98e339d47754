package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/markdave123-py/learnbridge/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/learnbridge/internal/api/middlewares"
	"github.com/markdave123-py/learnbridge/internal/config"
	"github.com/markdave123-py/learnbridge/internal/core"
	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
	"github.com/markdave123-py/learnbridge/internal/metrics"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	vectorizer ingestion_engine.Vectorizer,
	docs handlers.DocumentAdmin,
	store handlers.VectorSearcher,
	embedder core.Embedder,
) *Server {
	vectorizeHandler := handlers.NewVectorizeHandler(vectorizer)
	docHandler := handlers.NewDocumentHandler(docs)
	searchHandler := handlers.NewSearchHandler(store, embedder)

	// A synchronous run may take up to RunTimeout; leave headroom for claim and finalize.
	requestTimeout := cfg.RunTimeout + 30*time.Second

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(logger))
	r.Use(appMiddleware.JSONRecoverer(logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/admin", func(admin chi.Router) {
		admin.Use(appMiddleware.AdminOnly(cfg.JWTSecret))

		admin.Post("/vectorize", vectorizeHandler.Vectorize)
		admin.Post("/upload", docHandler.UploadDocument)
		admin.Post("/search", searchHandler.Search)

		admin.Route("/curriculum", func(c chi.Router) {
			c.Post("/", docHandler.RegisterDocument)
			c.Get("/", docHandler.ListDocuments)
			c.Get("/{id}", docHandler.GetDocument)
			c.Delete("/{id}", docHandler.DeleteDocument)
			c.Post("/{id}/reprocess", docHandler.ReprocessDocument)
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
