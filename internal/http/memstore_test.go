package http

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/coldcall-auth/internal/models"
	"github.com/pribylovaa/coldcall-auth/internal/storage"
)

// memStore - storage.Storage в памяти для сквозных тестов роутера.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	tokens   map[string]*models.RefreshToken
	attempts []models.LoginAttempt
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uuid.UUID]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (m *memStore) SaveUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return storage.ErrAlreadyExists
		}
	}

	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *u
	return &cp, nil
}

func (m *memStore) IncrementFailedLogins(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return 0, storage.ErrNotFound
	}

	u.FailedLoginCount++
	return u.FailedLoginCount, nil
}

func (m *memStore) ResetFailedLogins(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		u.FailedLoginCount = 0
		u.LockUntil = nil
	}

	return nil
}

func (m *memStore) LockUser(_ context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		u.LockUntil = &until
	}

	return nil
}

func (m *memStore) SaveLoginAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memStore) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertLocked(token)
}

func (m *memStore) RefreshTokenByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

func (m *memStore) RevokeRefreshToken(_ context.Context, hash, replacedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.revokeLocked(hash, replacedBy), nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, oldHash string, next *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.revokeLocked(oldHash, next.TokenHash) {
		return storage.ErrRevoked
	}

	return m.insertLocked(next)
}

func (m *memStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}

	return n, nil
}

func (m *memStore) Close() {}

// activeTokens - число неотозванных токенов пользователя.
func (m *memStore) activeTokens(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}

	return n
}

func (m *memStore) token(hash string) *models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[hash]
	if !ok {
		return nil
	}

	cp := *t
	return &cp
}

func (m *memStore) insertLocked(token *models.RefreshToken) error {
	if _, ok := m.tokens[token.TokenHash]; ok {
		return storage.ErrAlreadyExists
	}

	cp := *token
	m.tokens[token.TokenHash] = &cp
	return nil
}

func (m *memStore) revokeLocked(hash, replacedBy string) bool {
	t, ok := m.tokens[hash]
	if !ok || t.RevokedAt != nil {
		return false
	}

	now := time.Now()
	t.RevokedAt = &now
	if replacedBy != "" {
		t.ReplacedByHash = &replacedBy
	}

	return true
}

var _ storage.Storage = (*memStore)(nil)
