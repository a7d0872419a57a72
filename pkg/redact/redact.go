// redact маскирует чувствительные данные перед записью в лог:
// e-mail, IP-адреса и хэши токенов.
package redact

import (
	"net/netip"
	"strings"
)

// Email оставляет первые две руны локальной части и домен целиком.
//
//	"agent.smith@example.com" -> "ag***@example.com"
//	"ab@ex.com"               -> "***@ex.com"
//	"no-at"                   -> "***"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	local, domain, _ := strings.Cut(s, "@")
	if r := []rune(local); len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// IP обнуляет хвост адреса: последний октет IPv4 или последние 80 бит IPv6.
// Нераспознанная строка заменяется на "***", пустая остаётся пустой.
func IP(s string) string {
	if s == "" {
		return ""
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "***"
	}

	bits := 48
	if addr.Is4() {
		bits = 24
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "***"
	}

	return prefix.Addr().String()
}

// Hash укорачивает хэш токена до 8 символов: достаточно, чтобы сопоставить
// запись журнала со строкой в БД, и бесполезно для подбора.
func Hash(h string) string {
	if len(h) <= 8 {
		return h
	}

	return h[:8] + "…"
}
