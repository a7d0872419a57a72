package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// RefreshCookie - HTTP-only cookie с refresh-токеном.
	RefreshCookie = "refresh_token"
	// CSRFCookie - читаемая из JS cookie для double-submit.
	CSRFCookie = "csrf_token"
	// CSRFHeader - заголовок, в котором клиент повторяет значение CSRFCookie.
	CSRFHeader = "X-CSRF-Token"
)

// CookiePolicy задаёт общие атрибуты всех cookie сервиса.
type CookiePolicy struct {
	SameSite http.SameSite
	Secure   bool
}

// ParseSameSite переводит значение из конфигурации в http.SameSite.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown SameSite value %q", s)
	}
}

// Cookie собирает cookie с политикой сервиса и путём "/".
func (p CookiePolicy) Cookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: httpOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// Expire возвращает cookie, которая удаляет name у клиента.
func (p CookiePolicy) Expire(name string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: httpOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}
