package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/nyaruka/phonenumbers"
)

// AuthOrchestrator is the operation surface the controller exposes over
// HTTP. *Auther implements it.
type AuthOrchestrator interface {
	Register(ctx context.Context, reg Registration) (*TokenPair, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	RefreshToken(ctx context.Context, presented string) (*TokenPair, error)
	Logout(ctx context.Context, presented string) error
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

var _ AuthOrchestrator = (*Auther)(nil)

// APIResponse is the response envelope shared by every auth endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(validatePhone)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func validatePhone(value any) error {
	phone, _ := value.(string)
	if phone == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, "US")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return validation.NewError("validation_phone", "must be a valid phone number")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

type AuthController struct {
	Auther AuthOrchestrator
	Logger Logger
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func NewAuthController(auther AuthOrchestrator, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Auther: auther,
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing AuthOrchestrator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the auth endpoints on the given router, usually
// an /api/v1/auth group.
func RegisterAuthRoutes(router fiber.Router, controller *AuthController) {
	router.Post("/register", controller.Register)
	router.Post("/login", controller.Login)
	router.Post("/refresh", controller.Refresh)
	router.Post("/logout", controller.Logout)
	router.Get("/verify-email", controller.VerifyEmail)
	router.Post("/forgot-password", controller.ForgotPassword)
	router.Post("/reset-password", controller.ResetPassword)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return a.badRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		return a.validationError(c, err)
	}

	pair, err := a.Auther.Register(c.Context(), Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		return a.handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Message: "Registration successful",
		Data:    pair,
	})
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return a.badRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		return a.validationError(c, err)
	}

	pair, err := a.Auther.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(APIResponse{
		Success: true,
		Message: "Login successful",
		Data:    pair,
	})
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return a.badRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		return a.validationError(c, err)
	}

	pair, err := a.Auther.RefreshToken(c.Context(), req.RefreshToken)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(APIResponse{
		Success: true,
		Message: "Token refreshed",
		Data:    pair,
	})
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return a.badRequest(c, "invalid request body")
	}

	if err := a.Auther.Logout(c.Context(), req.RefreshToken); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(APIResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

func (a *AuthController) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return a.badRequest(c, "token query parameter is required")
	}

	if err := a.Auther.VerifyEmail(c.Context(), token); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(APIResponse{
		Success: true,
		Message: "Email verified successfully",
	})
}

func (a *AuthController) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return a.badRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		return a.validationError(c, err)
	}

	if err := a.Auther.ForgotPassword(c.Context(), req.Email); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(APIResponse{
		Success: true,
		Message: "If the email exists, a reset link has been sent",
	})
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return a.badRequest(c, "invalid request body")
	}

	if err := req.Validate(); err != nil {
		return a.validationError(c, err)
	}

	if err := a.Auther.ResetPassword(c.Context(), req.Token, req.NewPassword); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(APIResponse{
		Success: true,
		Message: "Password reset successful",
	})
}

func (a *AuthController) badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(APIResponse{
		Success: false,
		Message: message,
	})
}

func (a *AuthController) validationError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(APIResponse{
		Success: false,
		Message: err.Error(),
	})
}

func (a *AuthController) handleError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred")
	}

	status := statusFromError(richErr)
	if status >= fiber.StatusInternalServerError {
		a.Logger.Error(
			"auth request failed: %s category=%s details=%s",
			richErr.Message,
			richErr.Category,
			print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: richErr.Message,
	})
}

func statusFromError(richErr *errors.Error) int {
	switch richErr.Category {
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryOperation:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
