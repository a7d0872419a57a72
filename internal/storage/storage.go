// storage описывает контракты хранилища учётных данных и журнала refresh-токенов.
package storage

//go:generate mockgen -source=./storage.go -destination=../../mocks/storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/coldcall-auth/internal/models"
)

var (
	// ErrNotFound - запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности (email/token_hash).
	ErrAlreadyExists = errors.New("already exists")
	// ErrRevoked - refresh-токен уже отозван (ротация не состоялась).
	ErrRevoked = errors.New("revoked")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (с учётом регистра).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// IncrementFailedLogins увеличивает счётчик неудачных входов и возвращает новое значение.
	IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error)
	// ResetFailedLogins обнуляет счётчик и снимает блокировку.
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error
	// LockUser блокирует вход до момента until.
	LockUser(ctx context.Context, id uuid.UUID, until time.Time) error
}

// LoginAttemptStorage пишет журнал попыток входа.
type LoginAttemptStorage interface {
	SaveLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

// RefreshTokenStorage выполняет операции над журналом refresh-токенов.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет запись о выданном refresh-токене.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит запись по хэшу токена.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshToken отзывает токен, если он ещё активен.
	// Возвращает false без ошибки, если активной записи нет.
	RevokeRefreshToken(ctx context.Context, hash, replacedBy string) (bool, error)
	// RotateRefreshToken в одной транзакции отзывает oldHash и сохраняет next.
	// Если oldHash уже отозван или отсутствует - ErrRevoked, ничего не меняется.
	RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken) error
	// RevokeAllForUser отзывает все активные токены пользователя.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	LoginAttemptStorage
	RefreshTokenStorage
	Close()
}
