package serverutils

import (
	"errors"

	"bchat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ParseBody decodes the request body into out. Undecodable input is a
// validation error; fiber's own errors (e.g. unsupported content type) pass through.
func ParseBody(ctx *fiber.Ctx, out interface{}) error {
	err := ctx.BodyParser(out)
	if err == nil {
		return nil
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return err
	}
	return apperror.Validation("Invalid request body")
}
