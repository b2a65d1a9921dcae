package serverutils

import (
	"strings"

	"ai-assistant-be/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	LocalUserId = "user_id"
	LocalTier   = "tier"
)

// Caller is the identity attached to a request. A zero UserId is a guest.
type Caller struct {
	UserId uuid.UUID
	// Tier is the tier claim, nil when the token carries none.
	Tier *entity.Tier
}

func (c Caller) IsGuest() bool {
	return c.UserId == uuid.Nil
}

// OptionalJwtMiddleware attaches the caller when a valid HS256 token is
// present. Missing or invalid tokens continue as guest.
func OptionalJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" || secret == "" {
			return ctx.Next()
		}

		caller, ok := parseToken(tokenStr, secret)
		if ok {
			ctx.Locals(LocalUserId, caller.UserId.String())
			if caller.Tier != nil {
				ctx.Locals(LocalTier, *caller.Tier)
			}
		}
		return ctx.Next()
	}
}

// bearerToken reads the Authorization header, then the token query
// parameter that browsers use for websocket handshakes.
func bearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

func parseToken(tokenStr, secret string) (Caller, bool) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Caller{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, false
	}
	idStr, _ := claims["user_id"].(string)
	userId, err := uuid.Parse(idStr)
	if err != nil || userId == uuid.Nil {
		return Caller{}, false
	}

	caller := Caller{UserId: userId}
	if tierStr, ok := claims["tier"].(string); ok {
		if tier, err := entity.ParseTier(tierStr); err == nil {
			caller.Tier = &tier
		}
	}
	return caller, true
}

// CallerFromCtx returns the caller set by OptionalJwtMiddleware.
func CallerFromCtx(ctx *fiber.Ctx) Caller {
	var caller Caller
	if idStr, ok := ctx.Locals(LocalUserId).(string); ok {
		if id, err := uuid.Parse(idStr); err == nil {
			caller.UserId = id
		}
	}
	if tier, ok := ctx.Locals(LocalTier).(entity.Tier); ok {
		caller.Tier = &tier
	}
	return caller
}
