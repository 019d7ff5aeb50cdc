package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a key stays held for longer than the
// locker is willing to wait.
var ErrLockTimeout = errors.New("lock: timed out waiting for key")

// Defaults for RedisLocker.
const (
	DefaultTTL        = 30 * time.Second
	DefaultRetry      = 50 * time.Millisecond
	DefaultKeyPrefix  = "pledger:lock:"
	defaultMaxWaitTTL = 2
)

// releaseScript deletes the lock only if it still holds our token, so a
// holder whose TTL expired cannot delete the next holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisLocker is a distributed per-key lock built on SET NX PX.
//
// The TTL bounds how long a crashed holder can block a key. It must exceed
// the longest expected write transaction.
type RedisLocker struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
	logger  *slog.Logger
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets the lock expiry. Default: 30s.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

// WithRetry sets the polling interval while a key is held. Default: 50ms.
func WithRetry(retry time.Duration) RedisOption {
	return func(l *RedisLocker) { l.retry = retry }
}

// WithMaxWait caps how long Lock waits before ErrLockTimeout.
// Default: twice the TTL.
func WithMaxWait(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.maxWait = d }
}

// WithKeyPrefix sets the Redis key namespace. Default: "pledger:lock:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) { l.logger = logger }
}

// NewRedisLocker creates a locker over client.
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
		retry:  DefaultRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxWait == 0 {
		l.maxWait = defaultMaxWaitTTL * l.ttl
	}
	return l
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// TryLock makes one acquisition attempt. ok is false when the key is held.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (release func(), ok bool, err error) {
	token := uuid.NewString()
	redisKey := l.prefix + key

	ok, err = l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return l.releaser(redisKey, token), true, nil
}

// Lock retries TryLock every retry interval until it succeeds, ctx is done,
// or maxWait elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	deadline := time.Now().Add(l.maxWait)
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		release, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}
}

// release runs even if the caller's context is already cancelled.
func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.Error("lock release failed", "lock", redisKey, "error", err)
	}
}
