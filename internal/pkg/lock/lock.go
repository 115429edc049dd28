// Package lock provides a best-effort mutual exclusion across API instances.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards a named critical section.
type Locker interface {
	// TryLock returns a release func, or ErrNotAcquired when another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
}

// New returns a Redis-backed locker, or an in-process one when client is nil.
func New(client *redis.Client) Locker {
	if client == nil {
		return NewLocal()
	}
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

// LocalLocker is used when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocal() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, ErrNotAcquired
	}
	l.held[key] = now.Add(ttl)
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}
