package security

import (
	"context"
	"math/rand"
	"time"
)

// Jitter возвращает случайную длительность в [min, max).
// При max <= min возвращается min.
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Sleep ждёт d или отмены ctx, что наступит раньше.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
