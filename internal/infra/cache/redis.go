// Package cache выдаёт аренды на пакетную обработку каналов.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tg-word-replacer/internal/domain"
)

// ErrLeaseLost возвращается, если аренду перехватили или она истекла.
var ErrLeaseLost = errors.New("аренда потеряна")

// compare-and-delete и compare-and-expire: владелец проверяется по значению ключа.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker реализует domain.JobLocker через SET NX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedis создаёт locker.
func NewRedis(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire занимает ключ, если он свободен.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: key, owner: owner, ttl: ttl}, true, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis refresh: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
