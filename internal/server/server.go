// Package server exposes the masking engine, transform pipeline and rule
// management over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/cache"
	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/events"
	"github.com/textveil/textveil/internal/history"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/masking"
	"github.com/textveil/textveil/internal/transform"
)

const version = "0.1.0"

// RuleStore is the rule source and management surface. *rules.Store
// satisfies it.
type RuleStore interface {
	List(ctx context.Context) ([]masking.Rule, error)
	Create(ctx context.Context, rule masking.Rule) (masking.Rule, error)
	Update(ctx context.Context, rule masking.Rule) error
	Delete(ctx context.Context, id string) error
}

// HistoryStore lists persisted records. *history.Store satisfies it.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// Deps carries the collaborators the server orchestrates. Rules is
// required; the rest may be nil and their endpoints degrade accordingly.
type Deps struct {
	Rules    RuleStore
	History  HistoryStore
	Autosave *history.Autosave
	Cache    *cache.ResultCache
	Hub      *events.Hub
}

// Server is the textveil HTTP server.
type Server struct {
	logger   *logger.Logger
	engine   *masking.Engine
	pipeline *transform.Pipeline
	deps     Deps
	limiter  *clientLimiter
	router   *mux.Router
	server   *http.Server

	mu  sync.RWMutex
	cfg *config.Config
}

// New creates a server around an engine and pipeline.
func New(cfg *config.Config, log *logger.Logger, engine *masking.Engine, pipeline *transform.Pipeline, deps Deps) *Server {
	router := mux.NewRouter()

	s := &Server{
		logger:   log.WithComponent("server"),
		engine:   engine,
		pipeline: pipeline,
		deps:     deps,
		limiter:  newClientLimiter(cfg.Server.RateLimit),
		router:   router,
		cfg:      cfg,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/restore", s.handleRestore).Methods("POST")
	api.HandleFunc("/transform", s.handleTransform).Methods("POST")
	api.HandleFunc("/similarity", s.handleSimilarity).Methods("POST")
	api.HandleFunc("/presets", s.handlePresets).Methods("GET")

	api.HandleFunc("/rules/export", s.handleExportRules).Methods("GET")
	api.HandleFunc("/rules/import", s.handleImportRules).Methods("POST")
	api.HandleFunc("/rules", s.handleListRules).Methods("GET")
	api.HandleFunc("/rules", s.handleCreateRule).Methods("POST")
	api.HandleFunc("/rules/{id}", s.handleUpdateRule).Methods("PUT")
	api.HandleFunc("/rules/{id}", s.handleDeleteRule).Methods("DELETE")

	api.HandleFunc("/history", s.handleListHistory).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.RLock()
	port := s.cfg.Server.Port
	s.mu.RUnlock()

	s.logger.Info("Starting textveil server", zap.Int("port", port))

	if s.deps.Hub != nil {
		go s.deps.Hub.Run()
	}
	s.limiter.startCleanupRoutine()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping textveil server")

	if s.deps.Autosave != nil {
		s.deps.Autosave.Stop()
	}

	return s.server.Shutdown(ctx)
}

// ApplyConfig swaps in a reloaded configuration. Only settings read per
// request take effect; the listener address does not change at runtime.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Info("Configuration reloaded",
		zap.Bool("detect_urls", cfg.Masking.DetectURLs),
		zap.Bool("detect_emails", cfg.Masking.DetectEmails),
		zap.Bool("detect_phones", cfg.Masking.DetectPhones),
	)
}

// defaultOptions returns the detection options for callers that do not pass
// explicit ones.
func (s *Server) defaultOptions() masking.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return masking.Options{
		DetectURLs:   s.cfg.Masking.DetectURLs,
		DetectEmails: s.cfg.Masking.DetectEmails,
		DetectPhones: s.cfg.Masking.DetectPhones,
	}
}

func (s *Server) cacheKeyPrefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Cache.KeyPrefix
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.deps.Hub != nil {
		clients = s.deps.Hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":             "textveil",
		"version":          version,
		"defaultOptions":   s.defaultOptions(),
		"connectedClients": clients,
	})
}

// handleWebSocket hands the connection to the event hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusNotFound, "event hub disabled")
		return
	}
	s.deps.Hub.HandleWebSocket(w, r)
}
