package inflight

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

// ErrBusy is returned when the same operation is already running.
var ErrBusy = errors.New("operation already in progress")

// Release ends an acquired operation.
type Release func()

// Guard rejects a second concurrent run of an operation with the same key.
type Guard interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Memory is a process-local guard.
type Memory struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{busy: make(map[string]struct{})}
}

func (m *Memory) Acquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.busy[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	m.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.busy, key)
			m.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a guard shared by every replica. The TTL frees the key if a
// holder dies before releasing.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{client: client, prefix: "console:inflight:", ttl: ttl}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	full := r.prefix + key

	ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
				slog.Warn("release inflight key failed", "key", full, "error", err)
			}
		})
	}, nil
}
