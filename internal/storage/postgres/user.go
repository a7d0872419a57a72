package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
)

const userColumns = `id, email, password_hash, failed_login_count, lock_until, created_at, updated_at`

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(id, email, password_hash, failed_login_count, lock_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FailedLoginCount,
		user.LockUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// IncrementFailedLogins атомарно увеличивает счётчик неудачных входов.
func (s *Storage) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	const op = "storage.postgres.IncrementFailedLogins"

	query := `
		UPDATE users
		SET failed_login_count = failed_login_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_count
	`

	var count int
	if err := s.db.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// ResetFailedLogins обнуляет счётчик и снимает блокировку.
func (s *Storage) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ResetFailedLogins"

	query := `
		UPDATE users
		SET failed_login_count = 0, lock_until = NULL, updated_at = now()
		WHERE id = $1
	`

	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LockUser выставляет lock_until.
func (s *Storage) LockUser(ctx context.Context, id uuid.UUID, until time.Time) error {
	const op = "storage.postgres.LockUser"

	query := `
		UPDATE users
		SET lock_until = $2, updated_at = now()
		WHERE id = $1
	`

	if _, err := s.db.Exec(ctx, query, id, until.UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FailedLoginCount,
		&user.LockUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &user, nil
}
