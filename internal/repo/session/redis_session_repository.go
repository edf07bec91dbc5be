package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/infra/logging"
)

var errSessionExpired = errors.New("session already expired")

// RedisSessionRepositoryConfig holds configuration for the Redis session repository.
type RedisSessionRepositoryConfig struct {
	Addr     string `env:"ADDR" default:"localhost:6379"`
	Password string `env:"PASSWORD" default:""`
	DB       int    `env:"DB" default:"0"`

	// KeyPrefix namespaces session keys
	KeyPrefix string `env:"KEY_PREFIX" default:"worldfan:session:"`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT" default:"5s"`
}

// RedisSessionRepository stores sessions as JSON values whose TTL matches the
// remaining session lifetime.
type RedisSessionRepository struct {
	client    *redis.Client
	keyPrefix string
	log       logging.Logger
}

var _ Repository = (*RedisSessionRepository)(nil)

// RedisSessionRepositoryFactory creates a factory function that returns a new RedisSessionRepository.
func RedisSessionRepositoryFactory(cfg RedisSessionRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout,
		})

		repo := NewRedisSessionRepository(client, cfg.KeyPrefix)
		if err := repo.Ping(ctx); err != nil {
			_ = client.Close()

			return nil, err
		}

		return repo, nil
	}
}

// NewRedisSessionRepository wraps an existing client.
func NewRedisSessionRepository(client *redis.Client, keyPrefix string) *RedisSessionRepository {
	return &RedisSessionRepository{
		client:    client,
		keyPrefix: keyPrefix,
		log: logging.GetLogger("repo.session.redis").With(
			logging.Group("redis", "addr", client.Options().Addr),
		),
	}
}

func (r *RedisSessionRepository) key(id string) string {
	return r.keyPrefix + id
}

// CreateSession implements Repository.CreateSession.
func (r *RedisSessionRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("create session %s: %w", s.ID, errSessionExpired)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(s.ID), payload, ttl).Err(); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("set session: %w", err))
	}

	return nil
}

// GetSession implements Repository.GetSession.
func (r *RedisSessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}

		return nil, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("get session: %w", err))
	}

	var s domain.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		r.log.WarnContext(ctx, "dropping undecodable session", "session.id", id, "error", err)

		return nil, domain.ErrSessionNotFound
	}

	return &s, nil
}

// DeleteSession implements Repository.DeleteSession.
func (r *RedisSessionRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("delete session: %w", err))
	}

	return nil
}

// Ping implements Repository.Ping.
func (r *RedisSessionRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping redis: %w", err))
	}

	return nil
}

// Close implements Repository.Close.
func (r *RedisSessionRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
