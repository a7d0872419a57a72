package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/models"
)

// AccessVerifier проверяет access-токен (реализуется tokens.Codec).
type AccessVerifier interface {
	VerifyAccess(token string) (*models.Claims, error)
}

type claimsKey struct{}

// RequireAuth пропускает запрос только с валидным "Authorization: Bearer <token>"
// и кладёт проверенные claims в контекст. Иначе 401.
func RequireAuth(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			claims, err := v.VerifyAccess(token)
			if err != nil {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims кладёт claims в контекст.
func WithClaims(ctx context.Context, c *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom достаёт claims, положенные RequireAuth.
func ClaimsFrom(ctx context.Context) (*models.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*models.Claims)
	return c, ok && c != nil
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
