package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another writer owns the lock
var ErrLockHeld = errors.New("lock held by another writer")

// Locker hands out short-lived exclusive locks keyed by name
// ⭐ SSOT: 테스트별 쓰기 직렬화는 여기서만
type Locker struct {
	client *Client
	prefix string

	// used when Redis is disabled; serialises writers of this process only
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker creates a new locker
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix, held: make(map[string]struct{})}
}

// releaseScript deletes the key only when the caller still owns it
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Acquire takes the lock for ttl. The returned func releases it.
// With Redis disabled the lock is held in process until released; ttl
// does not apply there.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)

	if !l.client.Enabled() {
		return l.acquireLocal(fullKey)
	}

	token := uuid.NewString()

	ok, err := l.client.Redis().SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.Redis(), []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("lock release failed: %w", err)
		}
		return nil
	}

	return release, nil
}

func (l *Locker) acquireLocal(key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLockHeld
	}
	l.held[key] = struct{}{}

	var once sync.Once
	release := func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}

	return release, nil
}
