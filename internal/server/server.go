package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/shelfsync/shelfsync/internal/db"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
}

// New opens and migrates the database and wires every service. The caller
// owns the returned server and must Start it or call Close.
func New(ctx context.Context, config *Config) (*Server, error) {
	database, err := db.Open(&config.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	svc, err := NewServices(ctx, config, database)
	if err != nil {
		database.Close()
		return nil, err
	}

	handler, err := SetupRoutes(config, svc)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &Server{
		config: config,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves HTTP on the configured address until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.HTTP.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln and the background services until ctx is
// done or one of them fails, then shuts everything down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("server start", "config", s.config)
	defer slog.Info("server stop")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := s.serveHTTP(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		return s.svc.Start(egCtx, s.config)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		return s.Stop(context.WithoutCancel(ctx))
	})

	return eg.Wait()
}

func (s *Server) serveHTTP(ln net.Listener) error {
	if s.config.HTTP.TLSEnabled() {
		slog.Info("http server start tls", "addr", ln.Addr().String(), "cert", s.config.HTTP.CertFile)
		return s.server.ServeTLS(ln, s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("http server start", "addr", ln.Addr().String())
	return s.server.Serve(ln)
}

// Stop drains in-flight requests for up to five seconds and closes the
// database.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	httpErr := s.server.Shutdown(shutdownCtx)
	if httpErr != nil {
		slog.Error("http server shutdown", "error", httpErr)
	}
	return errors.Join(httpErr, s.svc.Shutdown())
}

// Close releases resources of a server that was never started.
func (s *Server) Close() error {
	return s.svc.Shutdown()
}
