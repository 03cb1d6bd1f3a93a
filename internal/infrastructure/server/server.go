package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/eslsoft/masteryctx/internal/adapter/connectrpc"
	"github.com/eslsoft/masteryctx/internal/adapter/gateway"
	adaptergrpc "github.com/eslsoft/masteryctx/internal/adapter/grpc"
	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
)

// Server represents the application server
type Server struct {
	config     *config.Config
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *adaptergrpc.HealthChecker
	logger     *logrus.Logger
}

// NewServer creates a new server instance. The HTTP listener serves the
// REST gateway, the connect procedures and a plain health probe.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	learning connectrpc.LearningContextServiceHandler,
	routes *gateway.Routes,
	health *adaptergrpc.HealthChecker,
) (*Server, error) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(InterceptorLogger(logger.WithField("transport", "grpc"))),
		),
	)
	healthpb.RegisterHealthServer(grpcServer, health.Server())
	reflection.Register(grpcServer)

	gwMux, err := gateway.NewServeMux(routes)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	mux := http.NewServeMux()
	path, handler := connectrpc.NewLearningContextServiceHandler(
		learning,
		connect.WithInterceptors(Logger(logger.WithField("transport", "connect"))),
	)
	mux.Handle(path, handler)
	mux.HandleFunc("/healthz", healthz(health))
	mux.Handle("/", gwMux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           h2c.NewHandler(withCORS(mux, cfg.CORSOrigins()), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:     cfg,
		grpcServer: grpcServer,
		httpServer: httpServer,
		health:     health,
		logger:     logger,
	}, nil
}

func withCORS(h http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: connectcors.AllowedHeaders(),
		ExposedHeaders: connectcors.ExposedHeaders(),
		MaxAge:         7200,
	}).Handler(h)
}

func healthz(health *adaptergrpc.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health.Probe(r.Context()) != healthpb.HealthCheckResponse_SERVING {
			http.Error(w, "record source unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Handler exposes the HTTP handler chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// StartGRPC starts the gRPC server
func (s *Server) StartGRPC() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.logger.Infof("gRPC server starting on %s", addr)

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// StartHTTP starts the HTTP server
func (s *Server) StartHTTP() error {
	s.logger.Infof("HTTP server starting on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}

	return nil
}

// Run serves both listeners and the health probe until ctx is cancelled or
// a listener fails, then shuts everything down.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.StartGRPC)
	g.Go(s.StartHTTP)
	g.Go(func() error {
		s.health.Run(gctx, adaptergrpc.DefaultProbeInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("Failed to shutdown HTTP server: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
