package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getByColumn(ctx, tx, "email", NormalizeEmail(email))
}

func (a *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.ExistsByEmailTx(ctx, a.db, email)
}

func (a *users) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Exists(ctx)
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumn(ctx, tx, "email_verification_token", token)
}

func (a *users) GetByResetToken(ctx context.Context, token string) (*User, error) {
	return a.GetByResetTokenTx(ctx, a.db, token)
}

func (a *users) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumn(ctx, tx, "password_reset_token", token)
}

func (a *users) getByColumn(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
				})
		}
		return nil, err
	}

	return record, nil
}
