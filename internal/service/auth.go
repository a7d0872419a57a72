package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/coldcall-auth/internal/metrics"
	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
	"github.com/pribylovaa/coldcall-auth/internal/security"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
	"github.com/pribylovaa/coldcall-auth/pkg/redact"
)

const (
	passwordCost      = 12
	minPasswordLength = 6
	// bcrypt учитывает не больше 72 байт пароля.
	maxPasswordBytes = 72

	bookkeepingTimeout = 5 * time.Second
)

// dummyHash - bcrypt-хэш той же стоимости, что и у настоящих пользователей.
// С ним сравнивается пароль неизвестного e-mail, чтобы время ответа не выдавало,
// существует ли аккаунт.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("coldcall-dummy-password"), passwordCost)
	if err != nil {
		panic(fmt.Sprintf("service: dummy hash: %v", err))
	}

	return h
})

// Register создаёт пользователя. Сессию не выдаёт.
func (s *Service) Register(ctx context.Context, email, password string) (uuid.UUID, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx).With(slog.String("email", redact.Email(email)))

	id, outcome, err := s.register(ctx, email, password)
	s.metrics.Register(outcome)
	if err != nil {
		if outcome == metrics.OutcomeError {
			lg.Error("register_failed", slog.String("op", op), slog.String("err", err.Error()))
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered", slog.String("user_id", id.String()))

	return id, nil
}

func (s *Service) register(ctx context.Context, email, password string) (uuid.UUID, string, error) {
	if err := validateCredentials(email, password); err != nil {
		return uuid.Nil, metrics.OutcomeInvalidArgument, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return uuid.Nil, metrics.OutcomeError, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return uuid.Nil, metrics.OutcomeDuplicate, ErrEmailTaken
		}

		return uuid.Nil, metrics.OutcomeError, err
	}

	return user.ID, metrics.OutcomeSuccess, nil
}

// Login проверяет пароль и открывает сессию.
//
// Порядок шагов фиксирован:
//  1. заблокированный аккаунт получает ErrAccountLocked после задержки, без сравнения пароля
//     и без увеличения счётчика;
//  2. пароль всегда сравнивается с bcrypt-хэшем (настоящим или dummyHash);
//  3. задержка применяется к любому исходу;
//  4. каждая попытка пишется в журнал login_attempts, даже если клиент
//     отключился во время задержки.
func (s *Service) Login(ctx context.Context, email, password string, client models.ClientInfo) (*models.TokenPair, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx).With(slog.String("email", redact.Email(email)), slog.String("ip", redact.IP(client.IP)))

	pair, outcome, err := s.login(ctx, lg, email, password, client)
	s.metrics.Login(outcome)
	if err != nil {
		if outcome == metrics.OutcomeError {
			lg.Error("login_error", slog.String("op", op), slog.String("err", err.Error()))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

func (s *Service) login(ctx context.Context, lg *slog.Logger, email, password string, client models.ClientInfo) (*models.TokenPair, string, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, metrics.OutcomeInvalidArgument, err
	}

	user, err := s.storage.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, metrics.OutcomeError, err
	}

	now := s.now()

	if user != nil && user.IsLocked(now) {
		if _, err := s.failAttempt(ctx, email, client, nil, now); err != nil {
			return nil, metrics.OutcomeError, err
		}

		lg.Warn("login_rejected_locked", slog.Time("lock_until", *user.LockUntil))
		return nil, metrics.OutcomeLocked, ErrAccountLocked
	}

	hash := dummyHash()
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	match := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil && user != nil

	if !match {
		locked, err := s.failAttempt(ctx, email, client, user, now)
		if err != nil {
			return nil, metrics.OutcomeError, err
		}

		switch {
		case user == nil:
			lg.Info("login_failed", slog.String("reason", "unknown_email"))
			return nil, metrics.OutcomeInvalid, ErrInvalidCredentials
		case locked:
			lg.Warn("account_locked", slog.String("user_id", user.ID.String()))
			return nil, metrics.OutcomeLocked, ErrAccountLocked
		default:
			lg.Info("login_failed", slog.String("reason", "bad_password"))
			return nil, metrics.OutcomeInvalid, ErrInvalidCredentials
		}
	}

	delayErr := s.delay(ctx)

	bctx, cancel := bookkeepingContext(ctx)
	defer cancel()

	if err := s.storage.ResetFailedLogins(bctx, user.ID); err != nil {
		return nil, metrics.OutcomeError, err
	}

	if err := s.recordAttempt(bctx, email, client, true); err != nil {
		return nil, metrics.OutcomeError, err
	}

	if delayErr != nil {
		return nil, metrics.OutcomeError, delayErr
	}

	pair, err := s.issueSession(ctx, user, client, now, "")
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	lg.Info("login_succeeded", slog.String("user_id", user.ID.String()))

	return pair, metrics.OutcomeSuccess, nil
}

// Logout отзывает предъявленный refresh-токен по хэшу без проверки подписи.
// Пустой токен и повторный logout - не ошибка.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	if refreshToken == "" {
		return nil
	}

	revoked, err := s.storage.RevokeRefreshToken(ctx, security.HashToken(refreshToken), "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout", slog.Bool("revoked", revoked))

	return nil
}

// LogoutAll отзывает все активные refresh-токены пользователя.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "service.auth.LogoutAll"

	n, err := s.storage.RevokeAllForUser(ctx, userID)
	if err != nil {
		log.From(ctx).Error("logout_all_failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout_all",
		slog.String("user_id", userID.String()),
		slog.Int64("revoked", n),
	)

	return n, nil
}

// failAttempt - общий хвост неудачной попытки: задержка, запись в журнал и,
// если counted != nil, учёт неудачи в счётчике пользователя. Журнал и счётчик
// пишутся и тогда, когда ctx отменён во время задержки; ошибка задержки
// возвращается после них.
func (s *Service) failAttempt(ctx context.Context, email string, client models.ClientInfo, counted *models.User, now time.Time) (bool, error) {
	delayErr := s.delay(ctx)

	bctx, cancel := bookkeepingContext(ctx)
	defer cancel()

	if err := s.recordAttempt(bctx, email, client, false); err != nil {
		return false, err
	}

	var locked bool
	if counted != nil {
		var err error
		if locked, err = s.registerFailure(bctx, counted.ID, now); err != nil {
			return false, err
		}
	}

	return locked, delayErr
}

// bookkeepingContext отвязывает запись аудита от отмены запроса,
// сохраняя значения контекста и ограничивая время записи.
func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (s *Service) recordAttempt(ctx context.Context, email string, client models.ClientInfo, success bool) error {
	return s.storage.SaveLoginAttempt(ctx, &models.LoginAttempt{
		Email:     email,
		IP:        client.IP,
		Success:   success,
		CreatedAt: s.now().UTC(),
	})
}

// registerFailure увеличивает счётчик и блокирует аккаунт при достижении порога.
func (s *Service) registerFailure(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	count, err := s.storage.IncrementFailedLogins(ctx, userID)
	if err != nil {
		return false, err
	}

	if count < s.cfg.LockoutThreshold {
		return false, nil
	}

	if err := s.storage.LockUser(ctx, userID, now.Add(s.cfg.LockoutDuration)); err != nil {
		return false, err
	}

	return true, nil
}

// validateCredentials - общие правила для регистрации и входа:
// e-mail без display name и лишних пробелов, пароль от 6 символов до 72 байт.
func validateCredentials(email, password string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return ErrInvalidEmail
	}

	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}

	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	return nil
}
