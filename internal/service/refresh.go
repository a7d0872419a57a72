package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/coldcall-auth/internal/metrics"
	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
	"github.com/pribylovaa/coldcall-auth/internal/security"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
	"github.com/pribylovaa/coldcall-auth/pkg/redact"
)

// Refresh обменивает refresh-токен на новую пару (ротация, одноразовое использование).
//
// Проверки по порядку: подпись и срок JWT, запись в журнале, отзыв, срок записи,
// владелец, отпечаток User-Agent. При несовпадении отпечатка предъявленный токен
// отзывается без замены и возвращается ErrSessionRisk.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*models.TokenPair, error) {
	const op = "service.refresh.Refresh"

	lg := log.From(ctx)

	pair, outcome, err := s.refresh(ctx, refreshToken, client)
	s.metrics.Refresh(outcome)
	if err != nil {
		if outcome == metrics.OutcomeError {
			lg.Error("refresh_failed", slog.String("op", op), slog.String("err", err.Error()))
		} else {
			lg.Info("refresh_rejected", slog.String("reason", outcome))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

func (s *Service) refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*models.TokenPair, string, error) {
	if refreshToken == "" {
		return nil, metrics.OutcomeInvalidToken, ErrInvalidToken
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, metrics.OutcomeInvalidToken, ErrInvalidToken
	}

	oldHash := security.HashToken(refreshToken)

	stored, err := s.storage.RefreshTokenByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, metrics.OutcomeInvalidToken, ErrInvalidToken
		}

		return nil, metrics.OutcomeError, err
	}

	now := s.now()

	switch {
	case stored.IsRevoked():
		return nil, metrics.OutcomeRevoked, ErrTokenRevoked
	case stored.IsExpired(now):
		return nil, metrics.OutcomeExpired, ErrTokenExpired
	case stored.UserID != claims.UserID:
		return nil, metrics.OutcomeInvalidToken, ErrInvalidToken
	}

	uaHash := security.UserAgentHash(client.UserAgent)
	if stored.UserAgentHash != "" && stored.UserAgentHash != uaHash {
		if _, err := s.storage.RevokeRefreshToken(ctx, oldHash, ""); err != nil {
			return nil, metrics.OutcomeError, err
		}

		log.From(ctx).Warn("refresh_risk_detected",
			slog.String("user_id", stored.UserID.String()),
			slog.String("token", redact.Hash(oldHash)),
			slog.String("ip", redact.IP(client.IP)),
		)
		return nil, metrics.OutcomeRisk, ErrSessionRisk
	}

	if s.lock != nil {
		owner, ok, err := s.lock.TryAcquire(ctx, oldHash)
		switch {
		case err != nil:
			// Redis недоступен: решает условный UPDATE в БД.
			log.From(ctx).Warn("rotation_lock_unavailable", slog.String("err", err.Error()))
		case !ok:
			return nil, metrics.OutcomeRevoked, ErrTokenRevoked
		default:
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), oldHash, owner); err != nil {
					log.From(ctx).Warn("rotation_lock_release_failed", slog.String("err", err.Error()))
				}
			}()
		}
	}

	user, err := s.storage.UserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, metrics.OutcomeInvalidToken, ErrInvalidToken
		}

		return nil, metrics.OutcomeError, err
	}

	pair, err := s.issueSession(ctx, user, client, now, oldHash)
	if err != nil {
		if errors.Is(err, storage.ErrRevoked) {
			return nil, metrics.OutcomeRevoked, ErrTokenRevoked
		}

		return nil, metrics.OutcomeError, err
	}

	return pair, metrics.OutcomeSuccess, nil
}

// issueSession выпускает access/refresh/CSRF и сохраняет хэш refresh-токена.
// При непустом oldHash запись сохраняется через ротацию: старая запись отзывается
// со ссылкой на новую в одной транзакции.
func (s *Service) issueSession(ctx context.Context, user *models.User, client models.ClientInfo, now time.Time, oldHash string) (*models.TokenPair, error) {
	access, _, err := s.codec.SignAccess(user.ID, user.Email, now)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.codec.SignRefresh(user.ID, now)
	if err != nil {
		return nil, err
	}

	csrf, err := security.NewCSRFToken()
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		ID:            uuid.New(),
		UserID:        user.ID,
		TokenHash:     security.HashToken(refresh),
		ExpiresAt:     refreshExp.UTC(),
		CreatedAt:     now.UTC(),
		UserAgentHash: security.UserAgentHash(client.UserAgent),
		IP:            client.IP,
	}

	if oldHash == "" {
		err = s.storage.SaveRefreshToken(ctx, record)
	} else {
		err = s.storage.RotateRefreshToken(ctx, oldHash, record)
	}
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp.UTC(),
		CSRFToken:        csrf,
	}, nil
}
