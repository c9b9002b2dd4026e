// Package api serves the connection manager over HTTP: connecting and
// inspecting MCP servers, invoking their tools, prompts and resources, and
// managing stored server configs.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/store"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/catalog"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 4 << 20

// Options configure a Server.
type Options struct {
	// Addr controls the listen address used by ListenAndServe. Defaults to ":8080".
	Addr string
	// CORSOrigins lists allowed browser origins. Defaults to "*".
	CORSOrigins []string
	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// Logger receives request and lifecycle logs.
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

// Server wires the manager, the config store and the tool catalog to HTTP
// routes.
type Server struct {
	manager  *mcpmgr.Manager
	store    *store.Store
	catalog  *catalog.Catalog
	executor *catalog.Executor
	opts     Options
	logger   *slog.Logger
	handler  http.Handler

	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// New builds a Server. The manager and store are required; a nil catalog
// gets a fresh one with the default namespace.
func New(mgr *mcpmgr.Manager, st *store.Store, cat *catalog.Catalog, opts *Options) (*Server, error) {
	if mgr == nil {
		return nil, fmt.Errorf("api: manager is required")
	}
	if st == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if cat == nil {
		cat = catalog.New(nil)
	}
	options := opts.withDefaults()
	s := &Server{
		manager:  mgr,
		store:    st,
		catalog:  cat,
		executor: catalog.NewExecutor(cat, mgr),
		opts:     options,
		logger:   options.Logger,
	}
	s.handler = s.mountHandler()
	mgr.OnListChanged(s.refreshServer)
	return s, nil
}

// Handler exposes the root handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) mountHandler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	return c.Handler(s.logRequests(mux))
}

// ListenAndServe runs an HTTP server until the provided context is cancelled
// or the server stops.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServerMu.Lock()
	if s.httpServer != nil {
		srv := s.httpServer
		s.httpServerMu.Unlock()
		return fmt.Errorf("api: server already running on %s", srv.Addr)
	}
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv
	s.httpServerMu.Unlock()
	defer func() {
		s.httpServerMu.Lock()
		if s.httpServer == srv {
			s.httpServer = nil
		}
		s.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("api listening", slog.String("addr", s.opts.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Restore connects every stored config flagged active. Configs that fail to
// connect are flagged inactive again. It returns the number connected.
func (s *Server) Restore(ctx context.Context) (int, error) {
	active, err := s.store.Active(ctx)
	if err != nil {
		return 0, err
	}
	connected := 0
	for _, cfg := range active {
		snap := s.manager.Connect(ctx, cfg)
		s.catalog.Apply(snap)
		if snap.IsConnected {
			connected++
			continue
		}
		s.logger.Warn("autoconnect failed",
			slog.String("server", cfg.ID),
			slog.String("error", snap.LastError))
		s.markActive(ctx, cfg.ID, false)
	}
	return connected, nil
}

// refreshServer re-describes a server after it reported a list change so
// the catalog follows without a ?refresh=true round trip.
func (s *Server) refreshServer(change mcpmgr.ListChange) {
	ctx := context.Background()
	logger := s.logger.With(slog.String("server", change.ServerID))
	snap, ok := s.manager.Describe(ctx, change.ServerID)
	if !ok {
		logger.Warn("server dropped while refreshing after list change",
			slog.String("method", change.Method))
		s.catalog.Remove(change.ServerID)
		s.markActive(ctx, change.ServerID, false)
		return
	}
	s.catalog.Apply(snap)
	logger.Debug("catalog refreshed after list change",
		slog.String("method", change.Method),
		slog.Int("tools", len(snap.Tools)))
}

// markActive mirrors the connection state into the store. Configs connected
// ad hoc have no stored entry, which is fine.
func (s *Server) markActive(ctx context.Context, id string, active bool) {
	if id == "" {
		return
	}
	if err := s.store.SetActive(ctx, id, active); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to record connection state",
			slog.String("server", id),
			slog.String("error", err.Error()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r.Body = http.MaxBytesReader(rec, r.Body, maxBodyBytes)
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}
