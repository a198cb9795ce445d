package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/estudioia/videos-api/internal/auth"
	"github.com/estudioia/videos-api/pkg/response"
)

// AuthMiddleware authenticates bearer tokens, trying the identity provider's
// keys first and the legacy HMAC secret second.
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

// NewAuthMiddleware builds the middleware. Either argument may be empty but
// not both.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, jwtSecret: jwtSecret}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			return response.Unauthorized(c, "Invalid authorization header format")
		}
		return m.verify(c, token)
	}
}

// AuthenticateQuery reads the token from the token query parameter, for
// browser WebSocket clients that cannot set headers.
func (m *AuthMiddleware) AuthenticateQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			return m.verify(c, token)
		}
		token := c.Query("token")
		if token == "" {
			return response.Unauthorized(c, "Missing token")
		}
		return m.verify(c, token)
	}
}

func (m *AuthMiddleware) verify(c *fiber.Ctx, token string) error {
	if m.verifier != nil {
		claims, err := m.verifier.Validate(token)
		if err == nil {
			setIdentity(c, claims.UserID, claims.Email, claims.DisplayName())
			return c.Next()
		}
		if m.jwtSecret == "" {
			return response.Unauthorized(c, "Invalid or expired token")
		}
	}

	if m.jwtSecret != "" {
		claims, err := auth.ValidateLegacyToken(token, m.jwtSecret)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}
		setIdentity(c, claims.UserID, claims.Email, "")
		return c.Next()
	}

	return response.Unauthorized(c, "Authentication not configured")
}

func setIdentity(c *fiber.Ctx, userID, email, name string) {
	c.Locals("userId", userID)
	c.Locals("email", email)
	c.Locals("name", name)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}
