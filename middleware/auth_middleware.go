package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/yieldnest/invest_api/services"
)

const identityKey = "identity"

// IdentityResolver loads the current account behind a token's claims.
type IdentityResolver func(ctx context.Context, claimed services.Identity) (services.Identity, error)

// Protected verifies the bearer JWT, reloads the account through resolve and
// stores the resulting identity in locals. Role and status come from the
// stored account, not from the token.
func Protected(secret string, resolve IdentityResolver) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(secret),
		SigningMethod:  "HS256",
		ErrorHandler:   jwtError,
		SuccessHandler: storeIdentity(resolve),
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Missing or malformed JWT", "reason": "unauthenticated"})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"error": "Invalid or expired JWT", "reason": "unauthenticated"})
}

func storeIdentity(resolve IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return jwtError(c, jwt.ErrTokenMalformed)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return jwtError(c, jwt.ErrTokenMalformed)
		}
		rawID, _ := claims["user_id"].(string)
		userID, err := uuid.Parse(rawID)
		if err != nil {
			return jwtError(c, err)
		}
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)

		id, err := resolve(c.UserContext(), services.Identity{UserID: userID, Email: email, Role: role})
		switch {
		case err == nil:
		case errors.Is(err, services.ErrUserBlocked):
			return c.Status(fiber.StatusForbidden).
				JSON(fiber.Map{"error": services.ErrUserBlocked.Error(), "reason": services.Reason(err)})
		case errors.Is(err, services.ErrNotFound):
			return jwtError(c, err)
		default:
			log.Printf("🔥 Failed to resolve identity for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "Internal server error", "reason": "internal"})
		}

		c.Locals(identityKey, id)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by Protected.
func CurrentIdentity(c *fiber.Ctx) (services.Identity, bool) {
	id, ok := c.Locals(identityKey).(services.Identity)
	return id, ok
}

func AdminRequired(isAdmin func(services.Identity) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := CurrentIdentity(c)
		if !ok || !isAdmin(id) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":  "Forbidden: Admin access required",
				"reason": "forbidden",
			})
		}
		return c.Next()
	}
}

// CronKey admits requests carrying X-CRON-KEY equal to key. An empty key
// disables the endpoint.
func CronKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-CRON-KEY")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":  "Unauthorized",
				"reason": "unauthenticated",
			})
		}
		return c.Next()
	}
}
