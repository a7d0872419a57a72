// handlers - REST-обработчики сервиса аутентификации.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pribylovaa/coldcall-auth/internal/http/middleware"
	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/security"
	"github.com/pribylovaa/coldcall-auth/internal/service"
)

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	Auth    *service.Service
	Cookies security.CookiePolicy
	CSRFTTL time.Duration
}

func New(auth *service.Service, cookies security.CookiePolicy, csrfTTL time.Duration) *Handlers {
	return &Handlers{Auth: auth, Cookies: cookies, CSRFTTL: csrfTTL}
}

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

func clientInfo(r *http.Request) models.ClientInfo {
	return models.ClientInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// setSession выставляет refresh- и csrf-cookie новой пары.
func (h *Handlers) setSession(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, h.Cookies.Cookie(security.RefreshCookie, pair.RefreshToken, time.Until(pair.RefreshExpiresAt), true))
	http.SetCookie(w, h.Cookies.Cookie(security.CSRFCookie, pair.CSRFToken, h.CSRFTTL, false))
}

func (h *Handlers) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, h.Cookies.Expire(security.RefreshCookie, true))
	http.SetCookie(w, h.Cookies.Expire(security.CSRFCookie, false))
}
