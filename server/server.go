// Package server exposes a trained classifier over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/numclass/classifier"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
	"github.com/YuminosukeSato/numclass/pkg/store"
)

// Config holds the listener settings.
type Config struct {
	Port    int
	Timeout time.Duration
	// CacheSize bounds the prediction cache. Zero disables it.
	CacheSize int
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Port:      8000,
		Timeout:   30 * time.Second,
		CacheSize: 4096,
	}
}

// cacheKey identifies a memoised prediction.
type cacheKey struct {
	value int64
	model string
}

// Server serves predictions from a classifier. The classifier must not be
// rebuilt or reloaded while the server runs, since cached labels would go stale.
type Server struct {
	server     *http.Server
	config     Config
	classifier *classifier.Classifier
	store      *store.Store
	cache      *lru.Cache[cacheKey, string]
	logger     log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore exposes recorded builds on the training_runs endpoint.
func WithStore(st *store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithLogger replaces the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server around c.
func New(cfg Config, c *classifier.Classifier, opts ...Option) (*Server, error) {
	if c == nil {
		return nil, errors.NewValueError("server.New", "classifier is nil")
	}

	s := &Server{
		config:     cfg,
		classifier: c,
		logger:     log.GetLoggerWithName("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[cacheKey, string](cfg.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create prediction cache")
		}
		s.cache = cache
	}

	mux := http.NewServeMux()
	s.routes(mux)

	chain := Chain(
		Recovery(s.logger), // 最初に実行してpanicを捕捉
		RequestID,
		Logger(s.logger),
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain(mux),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/number-classifier/list_models/{$}", s.handleListModels)
	mux.HandleFunc("POST /api/number-classifier/predict/{$}", s.handlePredict)
	mux.HandleFunc("GET /api/number-classifier/training_runs/{$}", s.handleTrainingRuns)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr, "models", len(s.classifier.Models()))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
