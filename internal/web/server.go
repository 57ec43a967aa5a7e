// Package web exposes the import pipeline over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"finsync/internal/importer"
	"finsync/internal/logging"
	"finsync/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Importer runs the analyze and confirm steps for a caller.
type Importer interface {
	Analyze(ctx context.Context, userID, sender, subject string) (model.ImportBatch, error)
	Confirm(ctx context.Context, userID string, recs []model.StagedTransaction) (importer.ConfirmResult, error)
}

// Authorizer drives the mailbox consent round-trip.
type Authorizer interface {
	ConsentURL(userID, redirectURI string) (string, error)
	CompleteExchange(ctx context.Context, code, state, redirectURI string) (string, error)
}

// Options configure a Server.
type Options struct {
	JWTSecret      []byte
	FrontendURL    string
	RequestTimeout time.Duration
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Ready reports storage health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Server is the HTTP API for mailbox authorization and statement import.
type Server struct {
	importer    Importer
	auth        Authorizer
	log         *zap.Logger
	jwtSecret   []byte
	frontendURL string
	timeout     time.Duration
	gatherer    prometheus.Gatherer
	ready       func(ctx context.Context) error

	router *chi.Mux
	mu     sync.Mutex
	server *http.Server
}

func NewServer(imp Importer, auth Authorizer, log *zap.Logger, opts Options) *Server {
	s := &Server{
		importer:    imp,
		auth:        auth,
		log:         logging.OrNop(log),
		jwtSecret:   opts.JWTSecret,
		frontendURL: opts.FrontendURL,
		timeout:     opts.RequestTimeout,
		gatherer:    opts.Gatherer,
		ready:       opts.Ready,
		router:      chi.NewRouter(),
	}
	if s.timeout <= 0 {
		s.timeout = 90 * time.Second
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.timeout))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		// The provider redirects the browser here, so there is no bearer token.
		r.Get("/gmail/oauth2callback", s.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/gmail/authorize-url", s.handleAuthorizeURL)
			r.Get("/transactions/import/analyze", s.handleAnalyze)
			r.Post("/transactions/import/confirm", s.handleConfirm)
		})
	})
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string, readTimeout, writeTimeout, idleTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	s.log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLogger logs one line per request with status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.FromContext(r.Context(), s.log).Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
		)
	})
}
