package postgres

import (
	"context"
	"fmt"

	"github.com/pribylovaa/coldcall-auth/internal/models"
)

// SaveLoginAttempt добавляет строку в журнал попыток входа.
// Пустые email/ip сохраняются как NULL; created_at выставляет БД, если не задан.
func (s *Storage) SaveLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	const op = "storage.postgres.SaveLoginAttempt"

	query := `
		INSERT INTO login_attempts(email, ip, success, created_at)
		VALUES ($1, $2, $3, COALESCE($4::timestamptz, now()))
	`

	var createdAt any
	if !attempt.CreatedAt.IsZero() {
		createdAt = attempt.CreatedAt.UTC()
	}

	_, err := s.db.Exec(ctx, query,
		nullable(attempt.Email),
		nullable(attempt.IP),
		attempt.Success,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
