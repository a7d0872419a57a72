package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
)

// Timeout ограничивает время обработки запроса значением d, если у контекста
// ещё нет собственного дедлайна. При d <= 0 мидлвар ничего не делает.
//
// Если дедлайн истёк, а обработчик так ничего и не записал, клиент получает
// 504/deadline_exceeded.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}

			log.From(ctx).Warn("request_deadline_exceeded",
				slog.String("path", r.URL.Path),
				slog.Duration("timeout", d),
			)

			if sw.status == 0 {
				apierrors.WriteError(sw, r, ctx.Err())
			}
		})
	}
}
