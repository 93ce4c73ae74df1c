package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeRefreshTokenSQL revokes a still-valid record and returns it in one
// statement, which is what makes rotation race free: a concurrent second use
// of the same token matches zero rows.
var ConsumeRefreshTokenSQL = `UPDATE "refresh_tokens" AS "rft"
SET
	"is_revoked" = TRUE
WHERE
	"rft"."token" = ?
AND "rft"."is_revoked" = FALSE
AND "rft"."expires_at" > ?
RETURNING *;`

var RevokeAllRefreshTokensSQL = `UPDATE "refresh_tokens" AS "rft"
SET
	"is_revoked" = TRUE
WHERE
	"rft"."user_id" = ?
RETURNING *;`

var DeleteExpiredRefreshTokensSQL = `DELETE FROM "refresh_tokens"
WHERE "expires_at" < ?
RETURNING *;`

type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error)
	GetByTokenWithUser(ctx context.Context, token string) (*RefreshToken, error)
	GetByTokenWithUserTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error)
	Consume(ctx context.Context, token string, now time.Time) (*RefreshToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var (
	_ RefreshTokens                        = (*refreshTokens)(nil)
	_ repository.Repository[*RefreshToken] = (*refreshTokens)(nil)
)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(r *RefreshToken) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *RefreshToken, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
	}
}

func (a *refreshTokens) GetByToken(ctx context.Context, token string) (*RefreshToken, error) {
	return a.GetByTokenTx(ctx, a.db, token)
}

func (a *refreshTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *refreshTokens) GetByTokenWithUser(ctx context.Context, token string) (*RefreshToken, error) {
	return a.GetByTokenWithUserTx(ctx, a.db, token)
}

func (a *refreshTokens) GetByTokenWithUserTx(ctx context.Context, tx bun.IDB, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *refreshTokens) Consume(ctx context.Context, token string, now time.Time) (*RefreshToken, error) {
	return a.ConsumeTx(ctx, a.db, token, now)
}

func (a *refreshTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*RefreshToken, error) {
	res, err := a.Repository.RawTx(ctx, tx, ConsumeRefreshTokenSQL, token, now)
	if err != nil {
		return nil, err
	}

	if len(res) > 0 {
		return res[0], nil
	}

	// nothing matched: tell the not-found and found-but-invalid cases apart
	// for internal logging; callers surface them identically.
	if _, err := a.GetByTokenTx(ctx, tx, token); err != nil {
		return nil, err
	}

	return nil, ErrRefreshTokenNotValid
}

func (a *refreshTokens) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return a.RevokeAllForUserTx(ctx, a.db, userID)
}

func (a *refreshTokens) RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := a.Repository.RawTx(ctx, tx, RevokeAllRefreshTokensSQL, userID.String())
	return err
}

func (a *refreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return a.DeleteExpiredTx(ctx, a.db, now)
}

func (a *refreshTokens) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error) {
	res, err := a.Repository.RawTx(ctx, tx, DeleteExpiredRefreshTokensSQL, now)
	if err != nil {
		return 0, err
	}
	return len(res), nil
}
