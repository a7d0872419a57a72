// service содержит бизнес-логику аутентификации CRM:
// регистрацию, вход с защитой от перебора, ротацию refresh-токенов
// с обнаружением кражи и выход из сессий.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования, если переданное хранилище потокобезопасно.
//   - Гонки ротации решает условный UPDATE в хранилище; Redis-блокировка
//     ротации только отсекает дубли между инстансами и может отсутствовать.
//   - Ошибки возвращаются как sentinel-значения ниже и маппятся
//     HTTP-слоем в статусы (см. internal/errors).
package service

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/coldcall-auth/internal/config"
	"github.com/pribylovaa/coldcall-auth/internal/metrics"
	"github.com/pribylovaa/coldcall-auth/internal/security"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
	"github.com/pribylovaa/coldcall-auth/internal/tokens"
)

var (
	// ErrInvalidEmail - e-mail не проходит разбор net/mail. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrWeakPassword - пароль короче 6 символов. HTTP 400.
	ErrWeakPassword = errors.New("password is too short")

	// ErrPasswordTooLong - пароль длиннее 72 байт (предел bcrypt). HTTP 400.
	ErrPasswordTooLong = errors.New("password is too long")

	// ErrEmailTaken - e-mail уже зарегистрирован. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidCredentials - неверный пароль или неизвестный e-mail
	// (намеренно неразличимы). HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked - аккаунт временно заблокирован после серии неудачных входов. HTTP 429.
	ErrAccountLocked = errors.New("account locked")

	// ErrInvalidToken - refresh-токен отсутствует, не проходит проверку подписи
	// или не найден в журнале. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired - срок записи в журнале истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked - токен уже отозван (logout, ротация или параллельная ротация). HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrSessionRisk - отпечаток User-Agent не совпал с сохранённым;
	// предъявленный токен отозван. HTTP 401.
	ErrSessionRisk = errors.New("session risk detected")
)

// RotationLocker - короткая межинстансовая блокировка на хэш refresh-токена.
type RotationLocker interface {
	TryAcquire(ctx context.Context, key string) (owner string, ok bool, err error)
	Release(ctx context.Context, key, owner string) error
}

// Service описывает бизнес-логику аутентификации.
type Service struct {
	storage storage.Storage
	codec   *tokens.Codec
	cfg     config.AuthConfig

	lock    RotationLocker   // может быть nil
	metrics *metrics.Metrics // может быть nil

	now   func() time.Time
	delay func(ctx context.Context) error
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, codec *tokens.Codec, cfg config.AuthConfig) *Service {
	s := &Service{
		storage: storage,
		codec:   codec,
		cfg:     cfg,
		now:     time.Now,
	}

	s.delay = func(ctx context.Context) error {
		return security.Sleep(ctx, security.Jitter(s.cfg.LoginDelayMin, s.cfg.LoginDelayMax))
	}

	return s
}

// SetRotationLock подключает Redis-блокировку ротации (опционально).
func (s *Service) SetRotationLock(l RotationLocker) {
	s.lock = l
}

// SetMetrics подключает Prometheus-счётчики (опционально).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetLoginDelay заменяет задержку ответа на попытку входа.
func (s *Service) SetLoginDelay(fn func(ctx context.Context) error) {
	s.delay = fn
}

// SetClock заменяет источник текущего времени.
func (s *Service) SetClock(fn func() time.Time) {
	s.now = fn
}
