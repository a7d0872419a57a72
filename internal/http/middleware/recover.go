package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
)

// Recover перехватывает panic, логирует его со стеком и отвечает 500/internal.
// Детали паники наружу не уходят.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				// Прерывание ответа net/http пробрасываем дальше.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errors.New("internal"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
