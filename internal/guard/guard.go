// Package guard serialises work on a key: a second caller arriving while the
// first still holds the key is turned away instead of queued.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when the key is already taken.
var ErrHeld = errors.New("operation already in progress")

const keyPrefix = "inflight:v1:"

// Guard hands out exclusive, expiring holds on keys.
type Guard interface {
	// Acquire takes key for at most ttl. The returned release func must be
	// called on every exit path; it is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Memory is a process-local Guard.
type Memory struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemory returns an empty Memory guard.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]time.Time), now: time.Now}
}

// Acquire implements Guard.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.held[key]; ok && now.Before(until) {
		return nil, ErrHeld
	}
	until := now.Add(ttl)
	m.held[key] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.held[key] == until {
				delete(m.held, key)
			}
		})
	}, nil
}

// releaseScript deletes the key only if it still carries our token, so an
// expired hold never releases a newer one.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Guard shared by every console instance using the same server.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Acquire implements Guard with SET NX.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			releaseScript.Run(cleanupCtx, r.client, []string{keyPrefix + key}, token) // best effort cleanup
		})
	}, nil
}
