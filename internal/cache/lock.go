package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL - сколько живёт блокировка, если владелец так и не снял её.
const DefaultLockTTL = 10 * time.Second

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RotationLock - межинстансовый признак «ротация этого токена уже идёт» (SET NX PX).
type RotationLock struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRotationLock создаёт блокировку; ttl <= 0 заменяется на DefaultLockTTL.
func NewRotationLock(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RotationLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	return &RotationLock{rdb: rdb, prefix: prefix, ttl: ttl}
}

// TryAcquire пытается занять key. При успехе возвращает токен владельца для Release.
func (l *RotationLock) TryAcquire(ctx context.Context, key string) (string, bool, error) {
	const op = "cache.RotationLock.TryAcquire"

	owner := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.prefix+key, owner, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	if !ok {
		return "", false, nil
	}

	return owner, true, nil
}

// Release снимает блокировку, если ею всё ещё владеет owner.
func (l *RotationLock) Release(ctx context.Context, key, owner string) error {
	const op = "cache.RotationLock.Release"

	err := releaseScript.Run(ctx, l.rdb, []string{l.prefix + key}, owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return nil
}
