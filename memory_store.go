package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the reference SessionStore: a mutex-guarded map set. All
// operations are atomic with respect to each other, which gives the rotation
// primitive its one-shot guarantee under concurrency.
type MemoryStore struct {
	mu            sync.Mutex
	usersByID     map[string]*User
	usersByEmail  map[string]*User
	refreshTokens map[string]*RefreshToken
	now           func() time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides the store's time source.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		usersByID:     map[string]*User{},
		usersByEmail:  map[string]*User{},
		refreshTokens: map[string]*RefreshToken{},
		now:           time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := NormalizeEmail(user.Email)
	if _, taken := m.usersByEmail[email]; taken {
		return nil, ErrEmailRegistered
	}

	cp := *user
	cp.Email = email
	now := m.now()
	cp.CreatedAt = &now
	cp.UpdatedAt = &now

	m.usersByID[cp.ID.String()] = &cp
	m.usersByEmail[email] = &cp

	out := cp
	return &out, nil
}

// CreateUserWithRefreshToken inserts the user and its first session record
// under one lock: both land or neither does.
func (m *MemoryStore) CreateUserWithRefreshToken(ctx context.Context, user *User, record *RefreshToken) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := NormalizeEmail(user.Email)
	if _, taken := m.usersByEmail[email]; taken {
		return nil, ErrEmailRegistered
	}

	cp := *user
	cp.Email = email
	now := m.now()
	cp.CreatedAt = &now
	cp.UpdatedAt = &now

	m.usersByID[cp.ID.String()] = &cp
	m.usersByEmail[email] = &cp

	rcp := *record
	rcp.UserID = cp.ID
	if rcp.CreatedAt == nil {
		rcp.CreatedAt = &now
	}
	m.refreshTokens[rcp.Token] = &rcp

	out := cp
	return &out, nil
}

func (m *MemoryStore) SaveUser(ctx context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.usersByID[user.ID.String()]
	if !ok {
		return nil, ErrUserNotFound
	}

	cp := *user
	cp.Email = NormalizeEmail(user.Email)
	now := m.now()
	cp.UpdatedAt = &now

	delete(m.usersByEmail, existing.Email)
	m.usersByID[cp.ID.String()] = &cp
	m.usersByEmail[cp.Email] = &cp

	out := cp
	return &out, nil
}

func (m *MemoryStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.usersByEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (m *MemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.usersByEmail[NormalizeEmail(email)]
	return ok, nil
}

func (m *MemoryStore) FindUserByVerificationToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.usersByID {
		if user.VerificationToken == token {
			out := *user
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) FindUserByResetToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.usersByID {
		if user.ResetToken == token {
			out := *user
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) SaveRefreshToken(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *record
	if cp.CreatedAt == nil {
		now := m.now()
		cp.CreatedAt = &now
	}
	m.refreshTokens[cp.Token] = &cp

	out := cp
	return &out, nil
}

func (m *MemoryStore) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.refreshTokens[token]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	out := *record
	return &out, nil
}

// ConsumeRefreshToken revokes a valid record and returns it. The check and
// the revocation happen under one lock so a replayed token always observes
// Revoked already set.
func (m *MemoryStore) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.refreshTokens[token]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}

	if !record.IsValid(m.now()) {
		return nil, ErrRefreshTokenNotValid
	}

	record.Revoked = true

	out := *record
	return &out, nil
}

// RotateRefreshToken consumes the presented token and inserts its
// replacement in the same lock section. A failed rotation leaves the
// presented token untouched; a successful one can never lose the
// replacement. The returned record carries the owning user.
func (m *MemoryStore) RotateRefreshToken(ctx context.Context, presented string, replacement *RefreshToken) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.refreshTokens[presented]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}

	if !record.IsValid(m.now()) {
		return nil, ErrRefreshTokenNotValid
	}

	record.Revoked = true

	cp := *replacement
	cp.UserID = record.UserID
	if cp.CreatedAt == nil {
		now := m.now()
		cp.CreatedAt = &now
	}
	m.refreshTokens[cp.Token] = &cp

	out := cp
	if user, found := m.usersByID[cp.UserID.String()]; found {
		ucp := *user
		out.User = &ucp
	}
	return &out, nil
}

func (m *MemoryStore) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.refreshTokens {
		if record.UserID.String() == userID {
			record.Revoked = true
		}
	}
	return nil
}

func (m *MemoryStore) DeleteExpiredRefreshTokens(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, record := range m.refreshTokens {
		if now.After(record.ExpiresAt) {
			delete(m.refreshTokens, token)
			removed++
		}
	}
	return removed, nil
}

// CountValidRefreshTokens reports the valid records owned by a user. Test
// and diagnostics helper.
func (m *MemoryStore) CountValidRefreshTokens(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for _, record := range m.refreshTokens {
		if record.UserID.String() == userID && record.IsValid(now) {
			count++
		}
	}
	return count
}
