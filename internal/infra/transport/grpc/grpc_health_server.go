// Package grpc exposes the standard grpc.health.v1 service so orchestrators
// can probe the process over gRPC.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	context_ "github.com/mkrupp/worldfan/internal/infra/context"
	"github.com/mkrupp/worldfan/internal/infra/logging"
)

// TraceIDMetadataKey carries the caller's trace id.
const TraceIDMetadataKey = "x-request-id"

// HealthServerConfig contains configuration parameters for the gRPC health server.
type HealthServerConfig struct {
	// ServerAddr is the network address to listen on; empty disables the server
	ServerAddr string `env:"SERVER_ADDR" default:""`

	// CheckInterval is the pause between dependency probes
	CheckInterval time.Duration `env:"CHECK_INTERVAL" default:"10s"`
}

// CheckFunc probes the dependencies of service. A nil result means serving.
type CheckFunc func(ctx context.Context) error

// HealthServer reports the serving status of one named service, refreshed by
// periodic probes.
type HealthServer struct {
	service string
	check   CheckFunc
	health  *health.Server
	log     logging.Logger
	cfg     HealthServerConfig
}

// NewHealthServer creates a HealthServer for service. Until the first probe
// completes, the service reports NOT_SERVING.
func NewHealthServer(service string, check CheckFunc, cfg HealthServerConfig) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		service: service,
		check:   check,
		health:  hs,
		log:     logging.GetLogger("infra.transport.grpc"),
		cfg:     cfg,
	}
}

// ListenAndServe listens on cfg.ServerAddr and serves until ctx is done.
func (s *HealthServer) ListenAndServe(ctx context.Context) error {
	sock, err := net.Listen("tcp", s.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return s.Serve(ctx, sock)
}

// Serve is ListenAndServe on an existing listener, which it takes ownership of.
func (s *HealthServer) Serve(ctx context.Context, sock net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.Probe(ctx)

	go s.probeLoop(ctx)

	go func() {
		<-ctx.Done()
		s.log.DebugContext(ctx, "stopping grpc server", "addr", sock.Addr().String())
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.log.InfoContext(ctx, "listening", "addr", sock.Addr().String())

	if err := srv.Serve(sock); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

// Probe runs the check once and publishes the result.
func (s *HealthServer) Probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING

	if err := s.check(ctx); err != nil {
		s.log.WarnContext(ctx, "health check failed", "service", s.service, "error", err)

		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus(s.service, status)
	s.health.SetServingStatus("", status)
}

func (s *HealthServer) probeLoop(ctx context.Context) {
	if s.cfg.CheckInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

func (s *HealthServer) loggingInterceptor(
	ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
) (any, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(TraceIDMetadataKey); len(values) > 0 {
			ctx = context_.WithTraceID(ctx, values[0])
		}
	}

	resp, err := handler(ctx, req)
	if err != nil {
		s.log.WarnContext(ctx, "grpc call failed", "method", info.FullMethod, "error", err)
	} else {
		s.log.DebugContext(ctx, "grpc call", "method", info.FullMethod)
	}

	return resp, err
}
