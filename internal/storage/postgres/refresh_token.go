package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
)

// execer - общий знаменатель pgxpool.Pool и pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	if err := insertRefreshToken(ctx, s.db, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at,
		       replaced_by_hash, COALESCE(user_agent_hash, ''), COALESCE(ip, '')
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.RevokedAt,
		&token.ReplacedByHash,
		&token.UserAgentHash,
		&token.IP,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RevokeRefreshToken отзывает refresh-токен, если он ещё не был отозван.
// Возвращает:
//
//	(true, nil)  - токен был активен и отозван сейчас;
//	(false, nil) - активной записи нет (уже отозван или не существует).
//
// Повторный отзыв - no-op, поэтому logout и ротация безопасны при гонках и ретраях.
func (s *Storage) RevokeRefreshToken(ctx context.Context, hash, replacedBy string) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	revoked, err := revokeRefreshToken(ctx, s.db, hash, replacedBy)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return revoked, nil
}

// RotateRefreshToken отзывает oldHash со ссылкой на next и сохраняет next в одной транзакции.
// Если условный UPDATE не затронул строк, транзакция откатывается и возвращается storage.ErrRevoked.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken) error {
	const op = "storage.postgres.RotateRefreshToken"

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		revoked, err := revokeRefreshToken(ctx, tx, oldHash, next.TokenHash)
		if err != nil {
			return err
		}

		if !revoked {
			return storage.ErrRevoked
		}

		return insertRefreshToken(ctx, tx, next)
	})

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevokeAllForUser отзывает все активные refresh-токены пользователя одним UPDATE.
func (s *Storage) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "storage.postgres.RevokeAllForUser"

	query := `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`

	tag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func insertRefreshToken(ctx context.Context, db execer, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens(id, user_id, token_hash, expires_at, created_at, user_agent_hash, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt.UTC(),
		token.CreatedAt.UTC(),
		nullable(token.UserAgentHash),
		nullable(token.IP),
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return storage.ErrAlreadyExists
		}

		return err
	}

	return nil
}

func revokeRefreshToken(ctx context.Context, db execer, hash, replacedBy string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = now(), replaced_by_hash = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`

	tag, err := db.Exec(ctx, query, hash, nullable(replacedBy))
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}
