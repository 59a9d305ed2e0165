package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL caps how long a crashed request can keep a session busy.
const DefaultLockTTL = 2 * time.Minute

// releaseScript deletes the lock only while it still carries the caller's
// token, so a holder whose lock expired cannot drop its successor's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps session snapshots in Redis so several server instances
// can share them.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	prefix  string
}

// NewRedisStore connects to redisURL and verifies the connection
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, lockTTL: DefaultLockTTL, prefix: "interview:session:"}
}

// WithLockTTL sets how long a session lock lives. It should outlast the
// longest answer a request may stream.
func (r *RedisStore) WithLockTTL(d time.Duration) *RedisStore {
	if d > 0 {
		r.lockTTL = d
	}
	return r
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) lockKey(id string) string {
	return r.prefix + id + ":lock"
}

// Get retrieves a session
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}

	var session Session
	if err := sonic.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &session, nil
}

// Save stores a session and refreshes its TTL
func (r *RedisStore) Save(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	data, err := sonic.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := r.client.Set(ctx, r.key(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session data: %w", err)
	}
	return nil
}

// Delete removes a session and its lock
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id), r.lockKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Acquire takes the per-session lock with SETNX
func (r *RedisStore) Acquire(ctx context.Context, id string) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.lockKey(id), token, r.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to lock session: %w", err)
	}
	if !ok {
		return "", ErrBusy
	}
	return token, nil
}

// Release drops the per-session lock if token still owns it
func (r *RedisStore) Release(ctx context.Context, id, token string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{r.lockKey(id)}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to unlock session: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// TTL returns the remaining lifetime of a session
func (r *RedisStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// Ping tests the Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
