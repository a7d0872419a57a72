package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/http/middleware"
)

// Me возвращает пользователя из проверенного access-токена.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: userView{ID: claims.UserID, Email: claims.Email}})
}

// SecureAction - пример изменяющего действия за RequireAuth и RequireCSRF.
func (h *Handlers) SecureAction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
