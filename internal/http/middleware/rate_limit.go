package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/pribylovaa/coldcall-auth/internal/cache"
	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
)

// RateLimit ограничивает частоту запросов по ключу keyFn (по умолчанию IP клиента).
// При превышении отвечает 429 с Retry-After. Если лимитер недоступен,
// запрос пропускается с предупреждением в логе.
func RateLimit(l cache.Limiter, keyFn func(*http.Request) string) Middleware {
	if keyFn == nil {
		keyFn = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := l.Allow(r.Context(), keyFn(r))
			if err != nil {
				log.From(r.Context()).Warn("rate_limit_unavailable", slog.String("err", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				apierrors.WriteError(w, r, cache.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
