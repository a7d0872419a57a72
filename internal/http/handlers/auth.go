package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/pribylovaa/coldcall-auth/internal/errors"
	"github.com/pribylovaa/coldcall-auth/internal/http/middleware"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
	"github.com/pribylovaa/coldcall-auth/internal/security"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidBody)
		return
	}

	id, err := h.Auth.Register(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{UserID: id})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidBody)
		return
	}

	pair, err := h.Auth.Login(r.Context(), in.Email, in.Password, clientInfo(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSession(w, pair)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: pair.AccessToken})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(security.RefreshCookie)
	if err != nil || c.Value == "" {
		apierrors.WriteError(w, r, apierrors.ErrMissingRefresh)
		return
	}

	pair, err := h.Auth.Refresh(r.Context(), c.Value, clientInfo(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSession(w, pair)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: pair.AccessToken})
}

// Logout всегда отвечает 200 и очищает cookie; сбой отзыва только логируется.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(security.RefreshCookie); err == nil {
		if err := h.Auth.Logout(r.Context(), c.Value); err != nil {
			log.From(r.Context()).Error("logout_failed", slog.String("err", err.Error()))
		}
	}

	h.clearSession(w)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	n, err := h.Auth.LogoutAll(r.Context(), claims.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearSession(w)
	writeJSON(w, http.StatusOK, okResponse{OK: true, Revoked: &n})
}
