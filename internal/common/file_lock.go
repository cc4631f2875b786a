package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another importer holds the lock.
var ErrLocked = errors.New("source file is locked by another import")

// FileLock serializes imports of the same source file across workers.
type FileLock interface {
	// Acquire takes the lock for key. The returned func releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// LocalFileLock locks within one process.
type LocalFileLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalFileLock() *LocalFileLock {
	return &LocalFileLock{held: make(map[string]struct{})}
}

func (l *LocalFileLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisFileLock locks across processes with SET NX and a TTL.
type RedisFileLock struct {
	client *redis.Client
	prefix string
}

func NewRedisFileLock(client *redis.Client, prefix string) *RedisFileLock {
	return &RedisFileLock{client: client, prefix: prefix}
}

func (l *RedisFileLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token)
		})
	}, nil
}
