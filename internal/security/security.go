// security содержит примитивы защиты сессий: хэширование токенов,
// CSRF-токены, политику cookie и случайную задержку ответа на вход.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// maxUserAgentLen - сколько байт User-Agent участвует в отпечатке клиента.
const maxUserAgentLen = 255

// HashToken возвращает SHA-256 строки в hex. В БД refresh-токены хранятся только так.
func HashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// UserAgentHash - отпечаток клиента по первым 255 байтам User-Agent.
func UserAgentHash(ua string) string {
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}

	return HashToken(ua)
}

// NewCSRFToken генерирует 32 случайных байта в hex (64 символа).
func NewCSRFToken() (string, error) {
	const op = "security.NewCSRFToken"

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(b), nil
}
