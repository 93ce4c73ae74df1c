package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const operationTimeout = 10 * time.Second

// Registration is the inbound payload for Register. The Role field is
// accepted for wire compatibility but never honored: every registration is
// created with RoleUser.
type Registration struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// Auther orchestrates the auth lifecycle: registration, login, refresh
// rotation, logout, email verification, and the password reset flow.
type Auther struct {
	store      SessionStore
	tokens     TokenService
	passwords  PasswordAuthenticator
	publisher  EventPublisher
	logger     Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	useHashid  bool
	now        func() time.Time
}

// NewAuthenticator returns a new Auther backed by the given store.
func NewAuthenticator(store SessionStore, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetAccessTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	resetTTL := opts.GetResetTokenExpiration()
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}

	return &Auther{
		store:      store,
		tokens:     tokenService,
		passwords:  BcryptAuthenticator{},
		publisher:  noopPublisher{},
		logger:     defLogger{},
		accessTTL:  opts.GetAccessTokenExpiration(),
		refreshTTL: opts.GetRefreshTokenExpiration(),
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

func (s *Auther) WithTokenService(tokens TokenService) *Auther {
	s.tokens = tokens
	return s
}

func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	s.passwords = passwords
	return s
}

// WithEventPublisher configures the notification publisher. Publish failures
// are logged and swallowed; they never fail the parent operation.
func (s *Auther) WithEventPublisher(publisher EventPublisher) *Auther {
	s.publisher = publisher
	return s
}

// WithHashidIDs derives user IDs deterministically from the email instead of
// generating random UUIDs.
func (s *Auther) WithHashidIDs() *Auther {
	s.useHashid = true
	return s
}

// WithClock overrides the time source.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this Auther. The
// gateway filter shares it to validate what the orchestrator issues.
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Register creates a new identity and signs it in. Fails with a conflict
// when the email is already taken (case-insensitive).
func (s *Auther) Register(ctx context.Context, reg Registration) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	email := NormalizeEmail(reg.Email)

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to check email availability")
	}
	if exists {
		return nil, ErrEmailRegistered
	}

	if reg.Role != "" && reg.Role != RoleUser {
		// privilege-escalation guard: caller-supplied roles are ignored
		s.logger.Warn("registration requested role %q, forcing %s", reg.Role, RoleUser)
	}

	hash, err := s.passwords.HashPassword(reg.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
	}

	user := &User{
		ID:                uuid.New(),
		Role:              RoleUser,
		FirstName:         reg.FirstName,
		LastName:          reg.LastName,
		Email:             email,
		Phone:             reg.Phone,
		PasswordHash:      hash,
		EmailVerified:     false,
		Active:            true,
		VerificationToken: uuid.NewString(),
	}

	if s.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}

	record, err := s.newRefreshRecord(user.ID)
	if err != nil {
		return nil, err
	}

	// user row and first session record commit together or not at all
	created, err := s.store.CreateUserWithRefreshToken(ctx, user, record)
	if err != nil {
		if errors.Is(err, ErrEmailRegistered) {
			return nil, ErrEmailRegistered
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "could not create user")
	}

	s.logger.Info("user registered: %s", created.Email)

	s.publish(ctx, func(ctx context.Context) error {
		return s.publisher.PublishUserRegistered(ctx, UserRegisteredEvent{
			UserID:            created.ID.String(),
			Email:             created.Email,
			FirstName:         created.FirstName,
			LastName:          created.LastName,
			Role:              created.Role,
			VerificationToken: created.VerificationToken,
		})
	})

	return s.tokenPairFor(created, record)
}

// Login verifies credentials and issues a fresh token pair. Unknown email
// and password mismatch return the identical error so responses cannot be
// used for account enumeration.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	user, err := s.store.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Debug("login attempt for unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to look up user")
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Debug("login password mismatch for %s", user.ID)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrAccountDeactivated
	}

	s.logger.Info("user logged in: %s", user.Email)
	return s.issueTokenPair(ctx, user)
}

// RefreshToken exchanges a presented refresh token for a new access token
// and a new refresh record. The token is single use: rotation revokes it
// and mints the replacement in one store operation, so a replayed token
// fails with a generic error and a failed rotation never strands the
// caller with a revoked token and no replacement.
func (s *Auther) RefreshToken(ctx context.Context, presented string) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	replacement, err := s.newRefreshRecord(uuid.Nil)
	if err != nil {
		return nil, err
	}

	rotated, err := s.store.RotateRefreshToken(ctx, presented, replacement)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) || errors.Is(err, ErrRefreshTokenNotValid) {
			s.logger.Debug("refresh rejected: %v", err)
			return nil, ErrInvalidRefreshToken
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to rotate refresh token")
	}

	user := rotated.User
	if user == nil {
		user, err = s.store.FindUserByID(ctx, rotated.UserID.String())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to load refresh token owner")
		}
	}

	s.logger.Info("token refreshed for user: %s", user.Email)
	return s.tokenPairFor(user, rotated)
}

// Logout revokes the presented refresh token. It is idempotent: an unknown
// or already-revoked token succeeds silently so the response leaks nothing.
func (s *Auther) Logout(ctx context.Context, presented string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	_, err := s.store.ConsumeRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) || errors.Is(err, ErrRefreshTokenNotValid) {
			return nil
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to revoke refresh token")
	}

	s.logger.Info("user logged out")
	return nil
}

// VerifyEmail marks the account holding the verification token as verified
// and clears the token.
func (s *Auther) VerifyEmail(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	user, err := s.store.FindUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidVerificationToken
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to look up verification token")
	}

	user.EmailVerified = true
	user.VerificationToken = ""

	if _, err := s.store.SaveUser(ctx, user); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to persist email verification")
	}

	s.logger.Info("email verified for user: %s", user.Email)
	return nil
}

// ForgotPassword always reports success, whether or not the email exists.
// That is a load-bearing anti-enumeration contract, not an oversight: for an
// unknown email there is no side effect at all.
func (s *Auther) ForgotPassword(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	user, err := s.store.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to look up user")
	}

	resetToken := uuid.NewString()
	expiry := s.now().Add(s.resetTTL)
	user.ResetToken = resetToken
	user.ResetTokenExpiry = &expiry

	if _, err := s.store.SaveUser(ctx, user); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to persist reset token")
	}

	s.publish(ctx, func(ctx context.Context) error {
		return s.publisher.PublishPasswordReset(ctx, PasswordResetEvent{
			UserID:     user.ID.String(),
			Email:      user.Email,
			FirstName:  user.FirstName,
			ResetToken: resetToken,
		})
	})

	s.logger.Info("password reset requested for: %s", user.Email)
	return nil
}

// ResetPassword replaces the password behind a valid reset token and revokes
// every refresh token the account owns: any password change invalidates all
// existing sessions.
func (s *Auther) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	user, err := s.store.FindUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to look up reset token")
	}

	if user.ResetTokenExpiry == nil || s.now().After(*user.ResetTokenExpiry) {
		return ErrResetTokenExpired
	}

	hash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
	}

	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetTokenExpiry = nil

	if _, err := s.store.SaveUser(ctx, user); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to persist new password")
	}

	if err := s.store.RevokeAllRefreshTokens(ctx, user.ID.String()); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to revoke sessions after password reset")
	}

	s.logger.Info("password reset successful for: %s", user.Email)
	return nil
}

func (s *Auther) issueTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	record, err := s.newRefreshRecord(user.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.SaveRefreshToken(ctx, record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to persist refresh token")
	}

	return s.tokenPairFor(user, record)
}

// newRefreshRecord mints an unsaved refresh record. A zero userID is legal:
// the rotation op fills in the owner from the consumed record.
func (s *Auther) newRefreshRecord(userID uuid.UUID) (*RefreshToken, error) {
	opaque, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to issue refresh token")
	}

	return &RefreshToken{
		ID:        uuid.New(),
		Token:     opaque,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.refreshTTL),
		Revoked:   false,
	}, nil
}

func (s *Auther) tokenPairFor(user *User, record *RefreshToken) (*TokenPair, error) {
	access, err := s.tokens.Generate(user.AsIdentity())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate access token")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: record.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
		User:         user.Info(),
	}, nil
}

func (s *Auther) publish(ctx context.Context, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.logger.Warn("event publish failed: %v", err)
	}
}
