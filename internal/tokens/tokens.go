// tokens выпускает и проверяет access/refresh JWT (HS256).
// Access и refresh подписываются разными секретами, поэтому токен одного
// типа никогда не проходит проверку как токен другого.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/coldcall-auth/internal/config"
	"github.com/pribylovaa/coldcall-auth/internal/models"
)

var (
	// ErrInvalidToken - единая ошибка проверки: подпись, алгоритм, срок, формат.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret - не задан один из секретов подписи.
	ErrMissingSecret = errors.New("token secret is empty")
	// ErrSameSecrets - секреты access и refresh совпадают.
	ErrSameSecrets = errors.New("access and refresh secrets must differ")
)

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// Codec подписывает и проверяет токены. Безопасен для конкурентного использования.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// New проверяет секреты и создаёт Codec.
func New(cfg config.AuthConfig) (*Codec, error) {
	const op = "tokens.New"

	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSecret)
	}

	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("%s: %w", op, ErrSameSecrets)
	}

	return &Codec{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTTL(),
		refreshTTL:    cfg.RefreshTTL(),
	}, nil
}

// SignAccess выпускает access-токен {sub, email, iat, exp, jti}.
func (c *Codec) SignAccess(userID uuid.UUID, email string, now time.Time) (string, time.Time, error) {
	const op = "tokens.SignAccess"

	exp := now.Add(c.accessTTL)
	claims := accessClaims{
		Email:            email,
		RegisteredClaims: registered(userID, now, exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// SignRefresh выпускает refresh-токен {sub, iat, exp, jti}.
func (c *Codec) SignRefresh(userID uuid.UUID, now time.Time) (string, time.Time, error) {
	const op = "tokens.SignRefresh"

	exp := now.Add(c.refreshTTL)
	claims := refreshClaims{RegisteredClaims: registered(userID, now, exp)}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// VerifyAccess проверяет access-токен и возвращает его claims.
func (c *Codec) VerifyAccess(token string) (*models.Claims, error) {
	const op = "tokens.VerifyAccess"

	var claims accessClaims
	id, err := parse(token, &claims, &claims.RegisteredClaims, c.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Claims{UserID: id, Email: claims.Email}, nil
}

// VerifyRefresh проверяет refresh-токен и возвращает его claims (без email).
func (c *Codec) VerifyRefresh(token string) (*models.Claims, error) {
	const op = "tokens.VerifyRefresh"

	var claims refreshClaims
	id, err := parse(token, &claims, &claims.RegisteredClaims, c.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Claims{UserID: id}, nil
}

func registered(userID uuid.UUID, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

// parse проверяет подпись и срок, затем достаёт sub как UUID.
// Любая причина отказа сводится к ErrInvalidToken.
func parse(token string, claims jwt.Claims, reg *jwt.RegisteredClaims, secret []byte) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	id, err := uuid.Parse(reg.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return id, nil
}
