package models

import "time"

// TokenPair - набор секретов, выдаваемый при входе и ротации.
//
// Описание:
//   - AccessToken - короткоживущий JWT, уходит только в теле ответа;
//   - RefreshToken - долгоживущий JWT, уходит только в HTTP-only cookie;
//     на сервере хранится лишь его хэш;
//   - RefreshExpiresAt - момент истечения refresh-токена (UTC), из него
//     считается Max-Age cookie;
//   - CSRFToken - значение для double-submit cookie.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	CSRFToken        string
}
