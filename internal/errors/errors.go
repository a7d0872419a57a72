// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервиса/мидлвара, на выход даёт:
//   - HTTP-статус;
//   - короткий стабильный code и безопасное message без внутренних деталей.
//
// Сообщения не раскрывают, существует ли e-mail (кроме 409 при регистрации).
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/coldcall-auth/internal/cache"
	"github.com/pribylovaa/coldcall-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrInvalidBody - тело запроса не разобрано (битый JSON, лишние поля).
	ErrInvalidBody = errors.New("invalid request body")
	// ErrUnauthenticated - нет Bearer-токена или он не прошёл проверку.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMissingRefresh - нет cookie refresh_token.
	ErrMissingRefresh = errors.New("missing refresh token")
	// ErrCSRF - заголовок X-CSRF-Token отсутствует или не совпадает с cookie.
	ErrCSRF = errors.New("csrf validation failed")
)

// APIError - единый формат для фронта.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP маппит ошибку в HTTP-статус и тело ответа.
// err == nil считается программной ошибкой и даёт 500.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// WriteError - хелпер для хендлеров и мидлваров.
// Добавляет request_id из заголовка X-Request-Id, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"

	case errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest, "invalid_argument", "invalid request body"
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrPasswordTooLong):
		return http.StatusBadRequest, "invalid_argument", "invalid email or password"

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already registered"

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthenticated", "invalid credentials"
	case errors.Is(err, service.ErrSessionRisk):
		return http.StatusUnauthorized, "unauthenticated", "session risk detected"
	case errors.Is(err, ErrMissingRefresh):
		return http.StatusUnauthorized, "unauthenticated", "missing refresh token"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthenticated", "refresh token is not valid"
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"

	case errors.Is(err, ErrCSRF):
		return http.StatusForbidden, "csrf_failed", "csrf validation failed"

	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusTooManyRequests, "account_locked", "account locked, try later"
	case errors.Is(err, cache.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many requests"

	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
