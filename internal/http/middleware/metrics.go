package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/coldcall-auth/internal/metrics"
)

// Metrics пишет длительность запроса в гистограмму с меткой шаблона маршрута chi,
// чтобы метка не зависела от конкретных значений в пути.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}

			m.ObserveHTTP(r.Method, route, strconv.Itoa(sw.Status()), time.Since(start).Seconds())
		})
	}
}
