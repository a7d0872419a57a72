package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - запись журнала refresh-токенов.
// Сам токен на сервере не хранится, только его SHA-256 (TokenHash).
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	// RevokedAt == nil - токен активен.
	RevokedAt *time.Time
	// ReplacedByHash - хэш токена, выпущенного при ротации.
	ReplacedByHash *string
	UserAgentHash  string
	IP             string
}

// IsRevoked сообщает, отозван ли токен.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired сообщает, истёк ли срок действия токена на момент now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
