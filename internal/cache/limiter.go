package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter решает, пропустить ли очередной запрос с ключом key.
// При отказе возвращает время до открытия следующего окна.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// WindowLimiter - фиксированное окно на счётчиках Redis (INCR + EXPIRE на первом попадании).
type WindowLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewWindowLimiter создаёт лимитер: не более limit запросов на ключ за window.
func NewWindowLimiter(rdb redis.UniversalClient, prefix string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	const op = "cache.WindowLimiter.Allow"

	k := l.prefix + key

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
		}
	}

	if count <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		// Ключ без TTL (сбой между INCR и EXPIRE) - чиним, чтобы окно не стало вечным.
		_ = l.rdb.Expire(ctx, k, l.window).Err()
		ttl = l.window
	}

	return false, ttl, nil
}
