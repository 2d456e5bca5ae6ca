package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const UserIDLocal = "user_id"

// NewJwtMiddleware verifies HS256 bearer tokens and stores the user_id claim
// in ctx.Locals. An empty secret disables authentication.
func NewJwtMiddleware(secret string) fiber.Handler {
	if secret == "" {
		return func(ctx *fiber.Ctx) error {
			return ctx.Next()
		}
	}

	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid claims")
		}
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid claims")
		}

		ctx.Locals(UserIDLocal, userID)
		return ctx.Next()
	}
}

// UserID returns the authenticated user, falling back to the given id when
// authentication is disabled.
func UserID(ctx *fiber.Ctx, fallback string) string {
	if id, ok := ctx.Locals(UserIDLocal).(string); ok && id != "" {
		return id
	}
	return fallback
}
