// cache содержит Redis-примитивы сервиса: лимитер попыток входа
// и короткую блокировку ротации refresh-токена.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited - лимит окна исчерпан.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable - Redis не ответил; вызывающий решает, пропускать ли запрос.
	ErrUnavailable = errors.New("redis unavailable")
)

// Connect создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет его ping-ом.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "cache.Connect"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rdb, nil
}
