package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/worldfan/internal/infra/config"
	"github.com/mkrupp/worldfan/internal/infra/logging"
	grpc_ "github.com/mkrupp/worldfan/internal/infra/transport/grpc"
	http_ "github.com/mkrupp/worldfan/internal/infra/transport/http"
	"github.com/mkrupp/worldfan/internal/repo/account"
	"github.com/mkrupp/worldfan/internal/repo/session"
	"github.com/mkrupp/worldfan/internal/svc/identitysvc"
	"github.com/mkrupp/worldfan/internal/svc/identitysvc/verifier"
)

const (
	appName = "worldfan"
	svcName = "identitysvc"
)

var errUnknownBackend = errors.New("unknown backend")

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig            `envPrefix:"LOG_"`
	HTTP     identitysvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	GRPC     grpc_.HealthServerConfig        `envPrefix:"GRPC_"`
	Verifier verifier.HTTPVerifierConfig     `envPrefix:"VERIFIER_"`
	Identity identitysvc.IdentityConfig      `envPrefix:"IDENTITY_"`
	Session  identitysvc.SessionConfig       `envPrefix:"SESSION_"`

	// AccountBackend selects the account store ("sqlite", "postgres" or "memory")
	AccountBackend string `env:"ACCOUNT_BACKEND" default:"sqlite"`

	// SessionBackend selects the session store ("redis" or "memory")
	SessionBackend string `env:"SESSION_BACKEND" default:"memory"`

	SQLite   account.SQLiteAccountRepositoryConfig   `envPrefix:"SQLITE_"`
	Postgres account.PostgresAccountRepositoryConfig `envPrefix:"POSTGRES_"`
	Redis    session.RedisSessionRepositoryConfig    `envPrefix:"REDIS_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.identitysvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	accounts, err := accountFactory(cfg)
	if err != nil {
		return err
	}

	sessions, err := sessionFactory(cfg)
	if err != nil {
		return err
	}

	identitySvc, err := identitysvc.NewIdentityService(
		ctx,
		cfg.Identity,
		cfg.Session,
		verifier.NewHTTPVerifier(cfg.Verifier),
		accounts,
		sessions,
	)
	if err != nil {
		return fmt.Errorf("new identity service: %w", err)
	}
	defer func() { _ = identitySvc.Close() }()

	log.InfoContext(ctx, "starting",
		"http", cfg.HTTP.ServerAddr,
		"grpc", cfg.GRPC.ServerAddr,
		"accounts", cfg.AccountBackend,
		"sessions", cfg.SessionBackend,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		httpTransport := identitysvc.NewHTTPTransport(identitySvc, cfg.HTTP)

		if err := http_.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
			return fmt.Errorf("http listen and serve: %w", err)
		}

		return nil
	})

	if cfg.GRPC.ServerAddr != "" {
		g.Go(func() error {
			healthServer := grpc_.NewHealthServer(svcName, identitySvc.Check, cfg.GRPC)

			if err := healthServer.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("grpc listen and serve: %w", err)
			}

			return nil
		})
	}

	return g.Wait() //nolint:wrapcheck
}

func accountFactory(cfg Config) (account.RepositoryFactory, error) {
	switch cfg.AccountBackend {
	case "sqlite":
		return account.SQLiteAccountRepositoryFactory(cfg.SQLite), nil
	case "postgres":
		return account.PostgresAccountRepositoryFactory(cfg.Postgres), nil
	case "memory":
		return account.MemoryAccountRepositoryFactory(), nil
	default:
		return nil, fmt.Errorf("%w: account backend %q", errUnknownBackend, cfg.AccountBackend)
	}
}

func sessionFactory(cfg Config) (session.RepositoryFactory, error) {
	switch cfg.SessionBackend {
	case "redis":
		return session.RedisSessionRepositoryFactory(cfg.Redis), nil
	case "memory":
		return session.MemorySessionRepositoryFactory(), nil
	default:
		return nil, fmt.Errorf("%w: session backend %q", errUnknownBackend, cfg.SessionBackend)
	}
}
