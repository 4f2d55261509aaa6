package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/explorer"
	"github.com/introlix/explorer/pkg/observability"
	"github.com/introlix/explorer/pkg/runtime"
)

// startupProbe is how long Start waits for the listener to fail fast on
// bad addresses before declaring the server up.
const startupProbe = 500 * time.Millisecond

// Server runs the HTTP API over a runtime it owns, rebuilding both when
// the watched configuration changes.
type Server struct {
	opts Options

	mu      sync.RWMutex
	config  *config.Config
	nextCfg *config.Config

	watcher       *config.Watcher
	runtime       *runtime.Runtime
	observability *observability.Manager
	httpServer    *http.Server

	stopChan   chan struct{}
	reloadChan chan struct{}
	doneChan   chan struct{}
}

type Options struct {
	// Config is the active configuration. Required.
	Config *config.Config

	// ConfigPath enables hot reload when Watch is set.
	ConfigPath string
	Watch      bool
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	s := &Server{
		opts:       opts,
		config:     opts.Config,
		stopChan:   make(chan struct{}),
		reloadChan: make(chan struct{}, 1),
		doneChan:   make(chan struct{}),
	}

	if opts.Watch && opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, s.scheduleReload)
		if err != nil {
			return nil, fmt.Errorf("failed to watch config: %w", err)
		}
		s.watcher = w
	}

	return s, nil
}

// scheduleReload stages cfg as the next configuration and nudges the
// lifecycle loop. Back-to-back changes coalesce into one reload.
func (s *Server) scheduleReload(cfg *config.Config) {
	slog.Info("Configuration change detected, scheduling reload")
	s.mu.Lock()
	s.nextCfg = cfg
	s.mu.Unlock()
	select {
	case s.reloadChan <- struct{}{}:
	default:
	}
}

// Start brings the server up and begins serving in the background. Use
// Wait to block until shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := s.startHTTP(); err != nil {
		s.cleanup(context.Background())
		return fmt.Errorf("failed to start http server: %w", err)
	}

	if s.watcher != nil {
		go func() {
			// Start blocks until the watcher is closed.
			if err := s.watcher.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Config watcher stopped", "error", err)
			}
		}()
	}

	slog.Info("Server started",
		"addr", s.addr(),
		"watch", s.watcher != nil)

	go s.runLifecycle()

	return nil
}

// Wait blocks until the server has fully shut down.
func (s *Server) Wait() {
	<-s.doneChan

	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

// Stop requests shutdown and waits for it, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopChan)

	select {
	case <-s.doneChan:
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) initialize(ctx context.Context) error {
	cfg := s.currentConfig()

	obsMgr := observability.NewManager(cfg.Observability)
	if err := obsMgr.Initialize(ctx); err != nil {
		slog.Warn("Failed to initialize observability, continuing without it", "error", err)
	}
	s.observability = obsMgr

	rt, err := runtime.NewWithConfig(ctx, cfg, explorer.WithRecorder(obsMgr.GetMetrics()))
	if err != nil {
		return err
	}
	s.runtime = rt

	return nil
}

func (s *Server) startHTTP() error {
	api := NewAPI(s.runtime.Engine(), s.observability.GetMetrics())

	s.httpServer = &http.Server{
		Addr:    s.addr(),
		Handler: api.Routes(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(startupProbe):
		return nil
	}
}

func (s *Server) runLifecycle() {
	defer close(s.doneChan)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			slog.Info("Shutting down on signal")
			s.shutdown()
			return

		case <-s.stopChan:
			slog.Info("Shutting down on stop request")
			s.shutdown()
			return

		case <-s.reloadChan:
			slog.Info("Reloading configuration")
			s.shutdown()

			s.mu.Lock()
			if s.nextCfg != nil {
				s.config = s.nextCfg
				s.nextCfg = nil
			}
			s.mu.Unlock()

			ctx := context.Background()
			if err := s.initialize(ctx); err != nil {
				slog.Error("Failed to reinitialize after reload", "error", err)
				return
			}
			if err := s.startHTTP(); err != nil {
				slog.Error("Failed to restart http server after reload", "error", err)
				s.cleanup(ctx)
				return
			}
			slog.Info("Server reloaded", "addr", s.addr())
		}
	}
}

// shutdown tears the serving stack down within the configured timeout.
func (s *Server) shutdown() {
	timeout := time.Duration(s.currentConfig().Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.cleanup(ctx)
}

func (s *Server) cleanup(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("HTTP shutdown incomplete", "error", err)
		}
		s.httpServer = nil
	}

	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			slog.Warn("Runtime cleanup failed", "error", err)
		}
		s.runtime = nil
	}

	if s.observability != nil {
		if err := s.observability.Shutdown(ctx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
		s.observability = nil
	}
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Server) addr() string {
	cfg := s.currentConfig()
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
