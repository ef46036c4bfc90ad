package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrConversationBusy is returned when another send already holds the conversation.
var ErrConversationBusy = errors.New("conversation is busy")

// MemoryLocker serializes sends per conversation within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// Acquire never waits: a held conversation yields ErrConversationBusy.
func (l *MemoryLocker) Acquire(_ context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[conversationID]; ok {
		return nil, ErrConversationBusy
	}
	l.held[conversationID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, conversationID)
			l.mu.Unlock()
		})
	}, nil
}

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker shares conversation locks between replicas. A held key is refreshed every third
// of ttl until released, so it only expires when the holder dies.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	refresh time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, refresh: ttl / 3}
}

func (l *RedisLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key := lockKey(conversationID)
	token := uuid.NewString()

	locked, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
	}
	if !locked {
		return nil, ErrConversationBusy
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(key, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				Logger.Warnf("failed to release conversation lock %s: %s", conversationID, err)
			}
		})
	}, nil
}

// keepAlive extends the key while token still owns it.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.refresh)
			owned, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				Logger.Warnf("failed to refresh conversation lock %s: %s", key, err)
				continue
			}
			if owned == 0 {
				Logger.Warnf("conversation lock %s was lost before release", key)
				return
			}
		}
	}
}

func lockKey(conversationID string) string {
	return "conversation_lock:" + conversationID
}

// NewRedisClient connects to redisURL and checks the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}
