package models

import "github.com/google/uuid"

// Claims - проверенные данные токена, которые мидлвар кладёт в контекст запроса.
// Email заполнен только для access-токенов.
type Claims struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email,omitempty"`
}

// ClientInfo - сведения о клиенте, участвующие в привязке сессии.
type ClientInfo struct {
	IP        string
	UserAgent string
}
