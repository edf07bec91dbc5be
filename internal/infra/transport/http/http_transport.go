package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mkrupp/worldfan/internal/infra/logging"
)

// HTTPTransportConfig contains configuration parameters for HTTP servers.
type HTTPTransportConfig struct {
	// ServerAddr is the network address to listen on
	ServerAddr string `env:"SERVER_ADDR" default:":8080"`

	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" default:"5s"`

	// WriteTimeout must exceed the verifier timeout, or slow verifications are cut off
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"15s"`

	// ShutdownTimeout bounds how long in-flight requests may finish after the context ends
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	// MaxBodyBytes caps request bodies
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" default:"1048576"`
}

// HTTPTransport defines the interface for HTTP handlers that can serve requests.
type HTTPTransport interface {
	http.Handler
}

// Handler wraps handler in the standard middleware chain: tracing, logging,
// body limits and panic recovery.
func Handler(handler HTTPTransport, cfg HTTPTransportConfig, log logging.Logger) http.Handler {
	handler = RescueingMiddleware(handler, log)
	handler = BodyLimitMiddleware(handler, cfg.MaxBodyBytes)
	handler = LoggingMiddleware(handler, log)
	handler = TracingMiddleware(handler)

	return handler
}

// ListenAndServe starts an HTTP server with the given handler and configuration.
// It blocks until ctx is done, then shuts the server down gracefully.
// Returns an error if the server fails to start or encounters an error while running.
func ListenAndServe(ctx context.Context, handler HTTPTransport, cfg HTTPTransportConfig) error {
	sock, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return Serve(ctx, sock, handler, cfg)
}

// Serve is ListenAndServe on an existing listener, which it takes ownership of.
func Serve(ctx context.Context, sock net.Listener, handler HTTPTransport, cfg HTTPTransportConfig) (err error) {
	log := logging.GetLogger("infra.transport.http")

	//nolint:exhaustruct
	server := &http.Server{
		Handler:           Handler(handler, cfg, log),
		ErrorLog:          logging.GetLogLogger(log, logging.LevelError),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	// serveCtx ends with ctx or when Serve fails
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownErr := make(chan error, 1)

	go func() {
		<-serveCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		log.DebugContext(ctx, "shutting down", "addr", sock.Addr().String())
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	log.InfoContext(ctx, "listening", "addr", sock.Addr().String())

	serveErr := server.Serve(sock)

	cancel()

	shutErr := <-shutdownErr

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", serveErr)
	}

	if shutErr != nil {
		return fmt.Errorf("shutdown: %w", shutErr)
	}

	return nil
}
