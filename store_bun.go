package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunSessionStore is the durable SessionStore, backed by the bun
// repositories. Rotation and revocation ride on single UPDATE statements so
// they are atomic without explicit transactions; multi-row writes run in
// RunInTx.
type BunSessionStore struct {
	repo RepositoryManager
	now  func() time.Time
}

var _ SessionStore = (*BunSessionStore)(nil)

func NewBunSessionStore(repo RepositoryManager) *BunSessionStore {
	return &BunSessionStore{
		repo: repo,
		now:  time.Now,
	}
}

func (s *BunSessionStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	user.Email = NormalizeEmail(user.Email)
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return s.repo.Users().Create(ctx, user)
}

// CreateUserWithRefreshToken runs the user insert and the first session
// insert in one transaction.
func (s *BunSessionStore) CreateUserWithRefreshToken(ctx context.Context, user *User, record *RefreshToken) (*User, error) {
	user.Email = NormalizeEmail(user.Email)
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	var created *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := s.repo.Users().ExistsByEmailTx(ctx, tx, user.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailRegistered
		}

		created, err = s.repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			return err
		}

		cp := *record
		cp.UserID = created.ID
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		_, err = s.repo.RefreshTokens().CreateTx(ctx, tx, &cp)
		return err
	})

	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *BunSessionStore) SaveUser(ctx context.Context, user *User) (*User, error) {
	user.Email = NormalizeEmail(user.Email)

	var saved *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String()))
		if err != nil {
			return err
		}
		saved = record
		return nil
	})

	if err != nil {
		return nil, mapUserNotFound(err)
	}
	return saved, nil
}

func (s *BunSessionStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.Users().GetByID(ctx, id)
	if err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *BunSessionStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *BunSessionStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.Users().ExistsByEmail(ctx, email)
}

func (s *BunSessionStore) FindUserByVerificationToken(ctx context.Context, token string) (*User, error) {
	user, err := s.repo.Users().GetByVerificationToken(ctx, token)
	if err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *BunSessionStore) FindUserByResetToken(ctx context.Context, token string) (*User, error) {
	user, err := s.repo.Users().GetByResetToken(ctx, token)
	if err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *BunSessionStore) SaveRefreshToken(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return s.repo.RefreshTokens().Create(ctx, record)
}

func (s *BunSessionStore) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	return s.repo.RefreshTokens().GetByToken(ctx, token)
}

func (s *BunSessionStore) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	return s.repo.RefreshTokens().Consume(ctx, token, s.now())
}

// RotateRefreshToken revokes the presented record and inserts the
// replacement in one transaction; an error on either side rolls both back.
func (s *BunSessionStore) RotateRefreshToken(ctx context.Context, presented string, replacement *RefreshToken) (*RefreshToken, error) {
	var rotated *RefreshToken
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		consumed, err := s.repo.RefreshTokens().ConsumeTx(ctx, tx, presented, s.now())
		if err != nil {
			return err
		}

		cp := *replacement
		cp.UserID = consumed.UserID
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if _, err := s.repo.RefreshTokens().CreateTx(ctx, tx, &cp); err != nil {
			return err
		}

		rotated, err = s.repo.RefreshTokens().GetByTokenWithUserTx(ctx, tx, cp.Token)
		return err
	})

	if err != nil {
		return nil, err
	}
	return rotated, nil
}

func (s *BunSessionStore) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	return s.repo.RefreshTokens().RevokeAllForUser(ctx, id)
}

func (s *BunSessionStore) DeleteExpiredRefreshTokens(ctx context.Context) (int, error) {
	return s.repo.RefreshTokens().DeleteExpired(ctx, s.now())
}

func mapUserNotFound(err error) error {
	if repository.IsRecordNotFound(err) {
		return ErrUserNotFound
	}
	return err
}
