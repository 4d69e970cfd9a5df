package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcripts/config"
	"github.com/nijaru/yt-transcripts/middleware"
	"github.com/nijaru/yt-transcripts/repository"
	"github.com/nijaru/yt-transcripts/services/transcript"
	"github.com/nijaru/yt-transcripts/validation"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	transcripts   *TranscriptHandler
	subscriptions *SubscriptionHandler
	webhooks      *WebhookHandler
	auth          func(http.Handler) http.Handler
	limit         func(http.Handler) http.Handler
	db            Pinger
	validator     *validation.Validator
	config        *config.Config
	logger        *logrus.Logger
	server        *http.Server
	startTime     time.Time
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		validator: validation.NewValidator(validation.DefaultMaxBodyBytes),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if cfg.Middleware.EnableRateLimit && cfg.RateLimit.Enabled {
		s.limit = middleware.NewRateLimiter(
			cfg.RateLimit.RequestsPerMinute,
			cfg.RateLimit.BurstSize,
		).Middleware
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// WithServices sets up the handlers with the provided services
func WithServices(transcripts transcript.Service, subscriptions SubscriptionService, webhooks WebhookProcessor) ServerOption {
	return func(s *Server) {
		s.transcripts = NewTranscriptHandler(transcripts, s.validator)
		s.subscriptions = NewSubscriptionHandler(subscriptions, s.validator)
		s.webhooks = NewWebhookHandler(webhooks)
	}
}

// WithAuth protects the user routes with session tokens checked against users.
func WithAuth(cfg middleware.AuthConfig, users repository.UserRepository) ServerOption {
	return func(s *Server) {
		s.auth = middleware.Auth(cfg, users)
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHealthCheck adds a database probe to /health.
func WithHealthCheck(db Pinger) ServerOption {
	return func(s *Server) {
		s.db = db
	}
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.addV1Routes(mux)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.middleware(mux)
}

func (s *Server) addV1Routes(mux *http.ServeMux) {
	const v1Prefix = "/api/v1"

	if s.transcripts != nil {
		mux.Handle("POST "+v1Prefix+"/transcripts", s.authed(s.transcripts.HandleCreate))
		mux.Handle("GET "+v1Prefix+"/transcripts", s.authed(s.transcripts.HandleList))
		mux.Handle("GET "+v1Prefix+"/transcripts/{id}", s.authed(s.transcripts.HandleGet))
	}

	if s.subscriptions != nil {
		mux.Handle("GET "+v1Prefix+"/subscription", s.authed(s.subscriptions.HandleGet))
		mux.Handle("POST "+v1Prefix+"/subscription", s.authed(s.subscriptions.HandleCheckout))
	}

	// Authenticated by signature, not by session. Not rate limited.
	if s.webhooks != nil {
		mux.HandleFunc("POST "+v1Prefix+"/webhooks/stripe", s.webhooks.HandleStripe)
	}
}

// authed wraps a user route with session auth and the caller rate limit.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return middleware.Chain(h, s.limit, s.auth)
}

func (s *Server) middleware(handler http.Handler) http.Handler {
	mw := s.config.Middleware

	var middlewares []func(http.Handler) http.Handler
	if mw.EnableRequestID {
		middlewares = append(middlewares, middleware.RequestID())
	}
	if mw.EnableLogger {
		middlewares = append(middlewares, middleware.Logging(s.logger))
	}
	if mw.EnableRecover {
		middlewares = append(middlewares, middleware.Recovery(s.logger))
	}
	if mw.EnableCORS && s.config.CORS.Enabled {
		middlewares = append(middlewares, middleware.CORS(s.config.CORS))
	}
	if mw.EnableTimeout && s.config.RequestTimeout > 0 {
		middlewares = append(middlewares, middleware.Timeout(s.config.RequestTimeout))
	}

	return middleware.Chain(handler, middlewares...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   s.config.Version,
		"uptime":    time.Since(s.startTime).String(),
	}

	code := http.StatusOK
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			middleware.GetLogger(r.Context()).WithError(err).Error("Health check database ping failed")
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	if s.config.Debug {
		status["debug"] = true
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": m.Alloc,
			"total":     m.TotalAlloc,
			"system":    m.Sys,
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, code, status)
}
