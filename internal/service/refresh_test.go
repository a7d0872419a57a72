package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/security"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
)

// issued выпускает refresh-токен и соответствующую ему запись журнала.
func issued(t *testing.T, env *testEnv, user *models.User) (string, *models.RefreshToken) {
	t.Helper()

	token, exp, err := env.codec.SignRefresh(user.ID, time.Now())
	require.NoError(t, err)

	return token, &models.RefreshToken{
		ID:            uuid.New(),
		UserID:        user.ID,
		TokenHash:     security.HashToken(token),
		ExpiresAt:     exp,
		CreatedAt:     time.Now(),
		UserAgentHash: security.UserAgentHash(testUA),
		IP:            testIP,
	}
}

type fakeLock struct {
	held     map[string]bool
	err      error
	released []string
}

func (l *fakeLock) TryAcquire(_ context.Context, key string) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held[key] {
		return "", false, nil
	}
	l.held[key] = true
	return "owner-" + key, true, nil
}

func (l *fakeLock) Release(_ context.Context, key, owner string) error {
	if owner != "owner-"+key {
		return fmt.Errorf("foreign owner %q", owner)
	}
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

func TestRefresh_Rotates(t *testing.T) {
	env := newSvc(t)
	user := newUser(t, "agent@example.com", "secret1")
	token, row := issued(t, env, user)

	var next *models.RefreshToken
	gomock.InOrder(
		env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil),
		env.st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil),
		env.st.EXPECT().RotateRefreshToken(gomock.Any(), row.TokenHash, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, rt *models.RefreshToken) error {
				next = rt
				return nil
			}),
	)

	pair, err := env.svc.Refresh(context.Background(), token, client())
	require.NoError(t, err)

	require.NotEqual(t, token, pair.RefreshToken)
	require.Equal(t, security.HashToken(pair.RefreshToken), next.TokenHash)
	require.Equal(t, user.ID, next.UserID)
	require.Equal(t, security.UserAgentHash(testUA), next.UserAgentHash)

	claims, err := env.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.Email, claims.Email)
	require.Len(t, pair.CSRFToken, 64)
	require.Zero(t, env.delays, "refresh has no artificial delay")
}

func TestRefresh_Rejections(t *testing.T) {
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name   string
		mutate func(row *models.RefreshToken)
		lookup error
		want   error
	}{
		{name: "not in ledger", lookup: storage.ErrNotFound, want: ErrInvalidToken},
		{name: "revoked", mutate: func(r *models.RefreshToken) { r.RevokedAt = &past }, want: ErrTokenRevoked},
		{name: "expired row", mutate: func(r *models.RefreshToken) { r.ExpiresAt = past }, want: ErrTokenExpired},
		{name: "foreign owner", mutate: func(r *models.RefreshToken) { r.UserID = uuid.New() }, want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSvc(t)
			user := newUser(t, "agent@example.com", "secret1")
			token, row := issued(t, env, user)

			if tt.lookup != nil {
				env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(nil, tt.lookup)
			} else {
				tt.mutate(row)
				env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil)
			}

			_, err := env.svc.Refresh(context.Background(), token, client())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRefresh_MalformedToken_NoStorageCalls(t *testing.T) {
	env := newSvc(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := env.svc.Refresh(context.Background(), token, client())
		require.ErrorIs(t, err, ErrInvalidToken)
	}

	// Access-токен не подходит как refresh.
	access, _, err := env.codec.SignAccess(uuid.New(), "a@example.com", time.Now())
	require.NoError(t, err)
	_, err = env.svc.Refresh(context.Background(), access, client())
	require.ErrorIs(t, err, ErrInvalidToken)
}

// TestRefresh_UserAgentMismatch - другой User-Agent отзывает предъявленный токен без замены.
func TestRefresh_UserAgentMismatch(t *testing.T) {
	env := newSvc(t)
	user := newUser(t, "agent@example.com", "secret1")
	token, row := issued(t, env, user)

	env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil)
	env.st.EXPECT().RevokeRefreshToken(gomock.Any(), row.TokenHash, "").Return(true, nil)

	_, err := env.svc.Refresh(context.Background(), token, models.ClientInfo{IP: testIP, UserAgent: "curl/8.0"})
	require.ErrorIs(t, err, ErrSessionRisk)
}

// TestRefresh_ConcurrentRotationLost - условный UPDATE не нашёл активной записи.
func TestRefresh_ConcurrentRotationLost(t *testing.T) {
	env := newSvc(t)
	user := newUser(t, "agent@example.com", "secret1")
	token, row := issued(t, env, user)

	env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil)
	env.st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	env.st.EXPECT().RotateRefreshToken(gomock.Any(), row.TokenHash, gomock.Any()).
		Return(fmt.Errorf("storage.postgres.RotateRefreshToken: %w", storage.ErrRevoked))

	_, err := env.svc.Refresh(context.Background(), token, client())
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefresh_StorageError(t *testing.T) {
	env := newSvc(t)
	user := newUser(t, "agent@example.com", "secret1")
	token, row := issued(t, env, user)
	boom := errors.New("db down")

	env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(nil, boom)

	_, err := env.svc.Refresh(context.Background(), token, client())
	require.ErrorIs(t, err, boom)
}

func TestRefresh_RotationLock(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		env := newSvc(t)
		user := newUser(t, "agent@example.com", "secret1")
		token, row := issued(t, env, user)

		lock := &fakeLock{held: map[string]bool{row.TokenHash: true}}
		env.svc.SetRotationLock(lock)

		env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil)

		_, err := env.svc.Refresh(context.Background(), token, client())
		require.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("acquired and released", func(t *testing.T) {
		env := newSvc(t)
		user := newUser(t, "agent@example.com", "secret1")
		token, row := issued(t, env, user)

		lock := &fakeLock{held: map[string]bool{}}
		env.svc.SetRotationLock(lock)

		env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil)
		env.st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
		env.st.EXPECT().RotateRefreshToken(gomock.Any(), row.TokenHash, gomock.Any()).Return(nil)

		_, err := env.svc.Refresh(context.Background(), token, client())
		require.NoError(t, err)
		require.Equal(t, []string{row.TokenHash}, lock.released)
		require.Empty(t, lock.held)
	})

	t.Run("redis down falls back to db", func(t *testing.T) {
		env := newSvc(t)
		user := newUser(t, "agent@example.com", "secret1")
		token, row := issued(t, env, user)

		env.svc.SetRotationLock(&fakeLock{err: errors.New("redis unavailable")})

		env.st.EXPECT().RefreshTokenByHash(gomock.Any(), row.TokenHash).Return(row, nil)
		env.st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
		env.st.EXPECT().RotateRefreshToken(gomock.Any(), row.TokenHash, gomock.Any()).Return(nil)

		_, err := env.svc.Refresh(context.Background(), token, client())
		require.NoError(t, err)
	})
}
