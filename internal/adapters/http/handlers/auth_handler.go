package handlers

import (
	"errors"
	"strings"
	"time"

	"edhub/internal/config"
	"edhub/internal/core/domain"
	"edhub/internal/core/services"
	"edhub/internal/pkg/response"
	"edhub/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		cfg:         cfg,
	}
}

// SignUp handles student registration
// @Summary Register new student
// @Description Register a new student account and open its first session
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.SignUpInput true "Registration data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var input services.SignUpInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	if input.DeviceInfo == "" {
		input.DeviceInfo = c.Get("User-Agent")
	}

	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	result, err := h.authService.SignUp(c.UserContext(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists):
			return response.Conflict(c, "Email or phone number already registered")
		default:
			return response.InternalServerError(c, "Failed to register")
		}
	}

	h.setAuthCookie(c, result.Token)

	return response.Created(c, "Account created successfully", fiber.Map{
		"token": result.Token,
		"user":  result.User,
	})
}

// SignIn handles student login
// @Summary Sign in
// @Description Authenticate credentials; any previous session on another device is invalidated
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.SignInInput true "Credentials"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var input services.SignInInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.DeviceInfo == "" {
		input.DeviceInfo = c.Get("User-Agent")
	}

	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	result, err := h.authService.SignIn(c.UserContext(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			return response.Unauthorized(c, "Invalid email or password")
		case errors.Is(err, domain.ErrUserBanned):
			var banned *domain.BannedError
			if errors.As(err, &banned) && banned.Reason != "" {
				return response.Forbidden(c, "Account banned: "+banned.Reason)
			}
			return response.Forbidden(c, "Account banned")
		default:
			return response.InternalServerError(c, "Failed to sign in")
		}
	}

	h.setAuthCookie(c, result.Token)

	message := "Signed in successfully"
	if result.HadPriorSession {
		message = "Signed in successfully, previous device was signed out"
	}

	return response.Success(c, message, fiber.Map{
		"token":             result.Token,
		"user":              result.User,
		"had_prior_session": result.HadPriorSession,
	})
}

// SignOut handles logout
// @Summary Sign out
// @Description Clear the stored session, invalidating every outstanding credential
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	if err := h.authService.SignOut(c.UserContext(), userID); err != nil {
		return response.InternalServerError(c, "Failed to sign out")
	}

	h.clearAuthCookie(c)

	return response.Success(c, "Signed out successfully", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Description Get the currently authenticated user's information
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	user, err := h.userService.GetByID(c.UserContext(), userID)
	if err != nil {
		return response.NotFound(c, "User not found")
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user.ToResponse(),
	})
}

// setAuthCookie sets the access token cookie
func (h *AuthHandler) setAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		MaxAge:   h.cfg.JWT.ExpiryHours * 3600,
		Secure:   h.cfg.IsProd(),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// clearAuthCookie clears the access token cookie
func (h *AuthHandler) clearAuthCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-1 * time.Hour),
		Secure:   h.cfg.IsProd(),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}
