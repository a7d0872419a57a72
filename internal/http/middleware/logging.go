package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
	"github.com/pribylovaa/coldcall-auth/pkg/redact"
)

// Logging кладёт request-scoped логгер (с request_id) в контекст
// и пишет одну запись "http" на запрос.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := log.Into(r.Context(), l)
			rid := RequestIDFrom(r.Context())
			if rid == "" {
				rid = r.Header.Get(HeaderRequestID)
			}
			if rid != "" {
				ctx = log.With(ctx, slog.String("request_id", rid))
			}
			r = r.WithContext(ctx)

			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if sw.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			log.From(r.Context()).LogAttrs(r.Context(), level, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.Status()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
				slog.String("ip", redact.IP(ClientIP(r))),
			)
		})
	}
}
