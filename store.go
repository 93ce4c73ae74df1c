package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// Store-level sentinels. The orchestrator maps these onto the uniform
// client-facing errors; they exist so sub-causes can be logged internally.
var (
	ErrUserNotFound         = errors.New("user not found", errors.CategoryNotFound)
	ErrRefreshTokenNotFound = errors.New("refresh token not found", errors.CategoryNotFound)
	ErrRefreshTokenNotValid = errors.New("refresh token is expired or revoked", errors.CategoryAuth)
)

// StartRefreshTokenSweeper deletes expired refresh-token rows on a fixed
// interval until the context is cancelled. Revoked-but-unexpired rows are
// kept: they are what makes refresh replay detectable.
func StartRefreshTokenSweeper(ctx context.Context, store SessionStore, interval time.Duration, logger Logger) {
	if logger == nil {
		logger = defLogger{}
	}
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.DeleteExpiredRefreshTokens(ctx)
				if err != nil {
					logger.Error("refresh token sweep failed: %v", err)
					continue
				}
				if n > 0 {
					logger.Debug("refresh token sweep removed %d records", n)
				}
			}
		}
	}()
}
