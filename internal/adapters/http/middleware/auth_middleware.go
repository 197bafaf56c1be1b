package middleware

import (
	"errors"
	"strings"

	"edhub/internal/core/domain"
	"edhub/internal/core/services"
	"edhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware creates authentication middleware. Besides validating the
// JWT it checks the embedded session token against the account's current
// session, so a token from a superseded sign-in is rejected even before
// its expiry.
func AuthMiddleware(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		// 1. Try to get token from cookie first
		accessToken = c.Cookies("access_token")

		// 2. If not in cookie, try Authorization header
		if accessToken == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				accessToken = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// 3. No token found
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 4. Validate token + current session
		user, err := authService.Authenticate(c.UserContext(), accessToken)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSessionInvalid):
				return response.Unauthorized(c, "Signed in from another device")
			case errors.Is(err, domain.ErrUserBanned):
				var banned *domain.BannedError
				if errors.As(err, &banned) && banned.Reason != "" {
					return response.Forbidden(c, "Account banned: "+banned.Reason)
				}
				return response.Forbidden(c, "Account banned")
			case errors.Is(err, domain.ErrTokenExpired):
				return response.Unauthorized(c, "Access token expired")
			default:
				return response.Unauthorized(c, "Invalid access token")
			}
		}

		// 5. Set user info in context
		c.Locals("userID", user.ID)
		c.Locals("role", user.Role)
		c.Locals("user", user)

		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only the admin role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(string(domain.RoleAdmin))
}

// InstructorOrAdmin middleware allows instructor or admin roles
func InstructorOrAdmin() fiber.Handler {
	return RoleMiddleware(string(domain.RoleInstructor), string(domain.RoleAdmin))
}

// OptionalAuth middleware - doesn't require auth but sets user info if a
// valid token with a live session is present
func OptionalAuth(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		accessToken = c.Cookies("access_token")
		if accessToken == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				accessToken = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if accessToken != "" {
			user, err := authService.Authenticate(c.UserContext(), accessToken)
			if err == nil {
				c.Locals("userID", user.ID)
				c.Locals("role", user.Role)
				c.Locals("user", user)
			}
		}

		return c.Next()
	}
}

// UserID returns the authenticated user's ID from context, 0 when absent
func UserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// Role returns the authenticated user's role from context
func Role(c *fiber.Ctx) domain.Role {
	if role, ok := c.Locals("role").(string); ok {
		return domain.Role(role)
	}
	return ""
}
