// Package redis stores short-lived auth secrets in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/metrics"
)

const keyPrefix = "hms:"

// consume deletes KEYS[1] only when it holds ARGV[1].
var consume = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type tokenRepository struct {
	client  redis.UniversalClient
	metrics *metrics.Metrics
}

// NewClient parses url and checks the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewTokenRepository returns a TokenRepository on client. m may be nil.
func NewTokenRepository(client redis.UniversalClient, m *metrics.Metrics) repository.TokenRepository {
	return &tokenRepository{client: client, metrics: m}
}

func (r *tokenRepository) observe(op string, err error) {
	if r.metrics != nil {
		r.metrics.RedisOperations.WithLabelValues(op, metrics.Result(err)).Inc()
	}
}

func codeKey(purpose, email string) string { return keyPrefix + "code:" + purpose + ":" + email }
func resetKey(email string) string         { return keyPrefix + "reset:" + email }
func revokedKey(id string) string          { return keyPrefix + "revoked:" + id }

func (r *tokenRepository) StoreCode(ctx context.Context, purpose, email, code string, ttl time.Duration) error {
	err := r.client.Set(ctx, codeKey(purpose, email), code, ttl).Err()
	r.observe("store_code", err)
	if err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}
	return nil
}

func (r *tokenRepository) ConsumeCode(ctx context.Context, purpose, email, code string) (bool, error) {
	return r.consume(ctx, "consume_code", codeKey(purpose, email), code)
}

func (r *tokenRepository) StoreResetToken(ctx context.Context, email, token string, ttl time.Duration) error {
	err := r.client.Set(ctx, resetKey(email), token, ttl).Err()
	r.observe("store_reset", err)
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

func (r *tokenRepository) ConsumeResetToken(ctx context.Context, email, token string) (bool, error) {
	return r.consume(ctx, "consume_reset", resetKey(email), token)
}

func (r *tokenRepository) consume(ctx context.Context, op, key, value string) (bool, error) {
	n, err := consume.Run(ctx, r.client, []string{key}, value).Int()
	r.observe(op, err)
	if err != nil {
		return false, fmt.Errorf("failed to consume %s: %w", key, err)
	}
	return n == 1, nil
}

func (r *tokenRepository) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	err := r.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err()
	r.observe("revoke", err)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *tokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	r.observe("is_revoked", err)
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n == 1, nil
}
