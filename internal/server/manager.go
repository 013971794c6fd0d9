package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config holds HTTP server settings.
type Config struct {
	Addr            string        // listen address, e.g. ":8080"
	ReadTimeout     time.Duration // max duration for reading the request
	WriteTimeout    time.Duration // max duration for writing the response
	IdleTimeout     time.Duration // keep-alive idle timeout
	MaxHeaderBytes  int           // max request header size
	ShutdownTimeout time.Duration // grace period for in-flight requests
}

// DefaultConfig returns server settings suitable for most deployments.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Manager wraps an http.Server with a non-blocking start and graceful
// shutdown. Start binds the listener synchronously so port conflicts
// surface immediately; serving happens in a background goroutine whose
// failure is reported through Errors.
type Manager struct {
	server   *http.Server
	listener net.Listener
	errCh    chan error
	config   Config
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewManager creates a server manager for the given handler.
func NewManager(handler http.Handler, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Manager{
		server: &http.Server{
			Addr:           config.Addr,
			Handler:        handler,
			ReadTimeout:    config.ReadTimeout,
			WriteTimeout:   config.WriteTimeout,
			IdleTimeout:    config.IdleTimeout,
			MaxHeaderBytes: config.MaxHeaderBytes,
		},
		errCh:  make(chan error, 1),
		config: config,
		logger: logger.Named("server"),
	}
}

// Start binds the listen address and begins serving in the background.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("server: manager already shut down")
	}
	if m.listener != nil {
		return errors.New("server: already started")
	}

	ln, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", m.config.Addr, err)
	}
	m.listener = ln

	go m.serve()

	m.logger.Info("server started", zap.String("addr", ln.Addr().String()))
	return nil
}

func (m *Manager) serve() {
	err := m.server.Serve(m.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("server terminated", zap.Error(err))
		select {
		case m.errCh <- err:
		default:
		}
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// requests up to the configured shutdown timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()

	m.logger.Info("server shutting down", zap.Duration("grace", m.config.ShutdownTimeout))
	if err := m.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM arrives or the serve loop
// fails, then performs a graceful shutdown.
func (m *Manager) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.logger.Info("received signal", zap.String("signal", sig.String()))
	case err := <-m.errCh:
		m.logger.Error("serve loop failed", zap.Error(err))
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// Errors exposes fatal serve-loop errors.
func (m *Manager) Errors() <-chan error { return m.errCh }

// Addr returns the bound listen address, or the configured address if
// the server has not started.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.config.Addr
}

// IsRunning reports whether the server has started and not shut down.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener != nil && !m.closed
}
