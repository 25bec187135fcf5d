package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned by session lookups when no client is configured.
var ErrUnavailable = errors.New("redis client not configured")

// Repository defines methods for interacting with Redis key-values
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	GetSession(ctx context.Context, sessionID string) (uint64, error)
}

type redis struct {
	client *goredis.Client
}

// NewRepository returns a Redis Repository implementation. A nil client makes
// cache operations no-ops and session lookups fail.
func NewRepository(client *goredis.Client) Repository {
	return &redis{client: client}
}

func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

// CheckoutIdempotencyKey scopes a client supplied Idempotency-Key to its buyer.
func CheckoutIdempotencyKey(buyerID uint64, key string) string {
	return fmt.Sprintf("idem:checkout:%d:%s", buyerID, key)
}

// Get retrieves a value by key. A missing key is not an error.
func (r *redis) Get(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", nil
	}
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetWithTTL stores a key/value pair with time-to-live
func (r *redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key from Redis
func (r *redis) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

// GetSession retrieves userID from session
func (r *redis) GetSession(ctx context.Context, sessionID string) (uint64, error) {
	if r.client == nil {
		return 0, ErrUnavailable
	}
	val, err := r.client.Get(ctx, SessionKey(sessionID)).Uint64()
	if err != nil {
		return 0, err
	}
	return val, nil
}
