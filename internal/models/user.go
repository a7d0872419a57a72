package models

import (
	"time"

	"github.com/google/uuid"
)

// User - модель пользователя CRM.
//
// Состояние учётной записи не хранится отдельным полем: блокировка
// вычисляется из LockUntil в момент чтения (см. IsLocked).
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string
	FailedLoginCount int
	LockUntil        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLocked сообщает, заблокирован ли вход на момент now.
// Истёкшая блокировка снимается пассивно - сравнением времени.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}
