package auth

import (
	"strings"

	"github.com/pianoholic0120/wp1141-sub002/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callerKey = "user_id"

// JWTMiddleware validates bearer tokens and stores the caller id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	return middleware(secret, true)
}

// OptionalJWTMiddleware admits anonymous requests. A token that is present but
// invalid is still rejected.
func OptionalJWTMiddleware(secret string) fiber.Handler {
	return middleware(secret, false)
}

func middleware(secret string, required bool) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			if required {
				return apperr.Unauthorized("missing bearer token")
			}
			return c.Next()
		}

		userID, err := parseUserID(token, secretBytes)
		if err != nil {
			return apperr.Unauthorized("token invalid")
		}

		c.Locals(callerKey, userID)
		return c.Next()
	}
}

// CallerID returns the authenticated user id, or "" for anonymous requests.
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals(callerKey).(string)
	return id
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func parseUserID(token string, secret []byte) (string, error) {
	parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.UserID, nil
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
