// Package ui provides an HTTP API over the extraction run history.
//
// It serves runs, entities and lineage from the state store as JSON and,
// in watch mode, re-extracts when artifacts change and announces new runs
// to Server-Sent Events listeners.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapmeta/internal/engine"
	"github.com/leapstack-labs/leapmeta/internal/ui/notifier"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Server is the API server.
type Server struct {
	engine       *engine.Engine
	store        core.Store
	addr         string
	watch        bool
	debounce     time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
	notifier     *notifier.Notifier
}

// Config holds configuration for the API server.
type Config struct {
	// Engine runs extractions in watch mode; it also provides the store
	// when Store is nil
	Engine *engine.Engine
	Store  core.Store
	Addr   string
	Watch  bool
	// Debounce delays re-extraction after an artifact change
	Debounce     time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := cfg.Store
	if store == nil && cfg.Engine != nil {
		store = cfg.Engine.Store()
	}
	return &Server{
		engine:       cfg.Engine,
		store:        store,
		addr:         cfg.Addr,
		watch:        cfg.Watch,
		debounce:     cfg.Debounce,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
		notifier:     notifier.New(),
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.requestLogger,
	)
	NewHandlers(s.store, s.notifier, s.logger).Routes(r, s.writeTimeout)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("no state store configured")
	}
	if s.watch && s.engine == nil {
		return fmt.Errorf("watch mode needs an engine")
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.logger.Info("starting API server", "addr", "http://"+ln.Addr().String())

	if s.watch {
		eg.Go(func() error {
			return s.engine.Watch(egctx, s.debounce, s.announce)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

func (s *Server) announce(res *engine.RunResult, err error) {
	if err != nil {
		s.logger.Error("re-extraction failed", "error", err)
	}
	if res != nil && res.Run != nil {
		s.notifier.Broadcast(res.Run.ID)
	}
}

// requestLogger logs each request through the server's slog logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
