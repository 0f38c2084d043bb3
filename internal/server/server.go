package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	notesite "github.com/alnah/go-notesite"
)

// Sentinel errors.
var (
	ErrRootNotFound = errors.New("site directory not found")
	ErrListen       = errors.New("cannot listen")
	ErrWatch        = errors.New("cannot watch directory")
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:3000"

	// DefaultLiveReloadPath is the websocket endpoint pages connect to.
	DefaultLiveReloadPath = "/_livereload"

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// Config configures a preview server.
type Config struct {
	Addr           string        // listen address (default DefaultAddr)
	Root           string        // built site to serve
	WatchDir       string        // docs directory; empty disables watching
	LiveReloadPath string        // websocket path (default DefaultLiveReloadPath)
	Debounce       time.Duration // watch debounce (default DefaultDebounce)
}

// Rebuilder rebuilds the outputs of changed source paths.
type Rebuilder interface {
	Rebuild(ctx context.Context, paths []string) (*notesite.Report, error)
}

// Server serves a built site and reloads browsers after rebuilds.
type Server struct {
	cfg       Config
	rebuilder Rebuilder
	log       *slog.Logger
	hub       *reloadHub
	router    chi.Router
}

// New validates cfg and sets up routes. rebuilder may be nil when
// cfg.WatchDir is empty.
func New(cfg Config, rebuilder Rebuilder, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.LiveReloadPath == "" {
		cfg.LiveReloadPath = DefaultLiveReloadPath
	}
	if cfg.WatchDir != "" && rebuilder == nil {
		return nil, fmt.Errorf("%w: watching requires a rebuilder", ErrWatch)
	}
	info, err := os.Stat(cfg.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, cfg.Root)
	}

	s := &Server{
		cfg:       cfg,
		rebuilder: rebuilder,
		log:       log,
		hub:       newReloadHub(log),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get(s.cfg.LiveReloadPath, s.hub.ServeHTTP)
	r.Handle("/*", staticHandler{root: s.cfg.Root})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, s.hub.Clients())
}

// Run listens on cfg.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrListen, s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln, watching cfg.WatchDir when set, until ctx is done.
// Shutdown is graceful; open live-reload connections are closed first.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var watcher *Watcher
	if s.cfg.WatchDir != "" {
		var err error
		watcher, err = NewWatcher(s.cfg.WatchDir, []string{s.cfg.Root}, s.cfg.Debounce, s.log)
		if err != nil {
			_ = ln.Close()
			return err
		}
	}

	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx, s.rebuild) })
	}
	g.Go(func() error {
		s.log.Info("serving site", "url", "http://"+ln.Addr().String(), "root", s.cfg.Root)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down...")
		s.hub.close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// rebuild handles one batch of watched changes.
func (s *Server) rebuild(ctx context.Context, paths []string) {
	report, err := s.rebuilder.Rebuild(ctx, paths)
	if ctx.Err() != nil {
		return
	}
	if report == nil {
		s.log.Error("rebuild failed", "error", err)
		return
	}
	for _, msg := range report.Messages() {
		s.log.Warn(msg.String())
	}
	if err != nil {
		s.log.Error("rebuild finished with errors", "error", err)
	}
	n := s.hub.Broadcast(reloadMessage)
	s.log.Info("rebuilt", "files", len(report.Results), "reloaded", n, "duration_ms", report.Duration.Milliseconds())
}

// Broadcast sends a reload to every connected page and returns how many
// pages were told.
func (s *Server) Broadcast() int {
	return s.hub.Broadcast(reloadMessage)
}

// LiveReloadPath returns the websocket path pages should connect to.
func (s *Server) LiveReloadPath() string {
	return s.cfg.LiveReloadPath
}
