package middleware

import (
	"github.com/chatcrm/crm-backend/internal/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	localsClaims  = "claims"
	localsSubject = "subject"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireToken rejects requests without a valid service token carrying scope
func RequireToken(tokens TokenValidator, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(localsClaims).(*auth.Claims)
		if !ok {
			token := auth.ExtractTokenFromBearer(c.Get(fiber.HeaderAuthorization))
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Authentication required",
					"kind":  "unauthorized",
					"code":  fiber.StatusUnauthorized,
				})
			}

			var err error
			claims, err = tokens.Validate(token)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid or expired token",
					"kind":  "unauthorized",
					"code":  fiber.StatusUnauthorized,
				})
			}
			c.Locals(localsClaims, claims)
			c.Locals(localsSubject, claims.Subject)
		}

		if scope != "" && !claims.HasScope(scope) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient scope",
				"kind":  "forbidden",
				"code":  fiber.StatusForbidden,
			})
		}

		return c.Next()
	}
}

// GetClaims returns the claims of the authenticated caller, if any
func GetClaims(c *fiber.Ctx) *auth.Claims {
	if claims, ok := c.Locals(localsClaims).(*auth.Claims); ok {
		return claims
	}
	return nil
}
