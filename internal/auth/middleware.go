package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"cvmatcher/backend/internal/models"
)

// ClaimsKey is the fiber.Ctx locals key holding *Claims.
const ClaimsKey = "auth_claims"

// Middleware rejects requests without a valid bearer token.
func Middleware(jwtService *JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Authorization header required",
				Code:  fiber.StatusUnauthorized,
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Invalid authorization header format",
				Code:  fiber.StatusUnauthorized,
			})
		}

		claims, err := jwtService.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error:   "Invalid or expired token",
				Code:    fiber.StatusUnauthorized,
				Details: err.Error(),
			})
		}

		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// RequireRole must run after Middleware.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := GetClaims(c)
		if claims == nil || claims.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{
				Error: "This action requires the " + string(role) + " role",
				Code:  fiber.StatusForbidden,
			})
		}
		return c.Next()
	}
}

func GetClaims(c *fiber.Ctx) *Claims {
	claims, ok := c.Locals(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}
