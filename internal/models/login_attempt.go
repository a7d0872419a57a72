package models

import "time"

// LoginAttempt - строка аудита попыток входа (append-only).
// Email хранится в том виде, в каком его прислал клиент, даже для неизвестных адресов.
type LoginAttempt struct {
	Email     string
	IP        string
	Success   bool
	CreatedAt time.Time
}
