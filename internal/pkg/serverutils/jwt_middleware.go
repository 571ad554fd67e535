package serverutils

import (
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/identity"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userIDLocal = "user_id"

func NewJwtMiddleware(verifier identity.Verifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := identity.BearerFromHeader(ctx.Get("Authorization"))
		if tokenStr == "" {
			return apperror.Authentication("Missing token")
		}

		userId, err := verifier.Verify(tokenStr)
		if err != nil {
			return err
		}

		ctx.Locals(userIDLocal, userId.String())
		return ctx.Next()
	}
}

func CurrentUserID(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, ok := ctx.Locals(userIDLocal).(string)
	if !ok {
		return uuid.Nil, apperror.Authentication("Unauthorized")
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, apperror.Authentication("Invalid user ID")
	}
	return userId, nil
}
