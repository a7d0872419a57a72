package middleware

import (
	"crypto/subtle"
	"net/http"

	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/security"
)

// RequireCSRF - double-submit проверка: заголовок X-CSRF-Token должен
// побайтно совпадать с cookie csrf_token. Иначе 403.
func RequireCSRF() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(security.CSRFHeader)

			cookie, err := r.Cookie(security.CSRFCookie)
			if err != nil || header == "" || cookie.Value == "" ||
				subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				apierrors.WriteError(w, r, apierrors.ErrCSRF)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
