package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/identity"
	"bchat-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerMapsKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"validation", apperror.Validation("Name and password required"), 400, "Name and password required"},
		{"expired", apperror.Expired("Room has expired"), 400, "Room has expired"},
		{"authentication", apperror.Authentication("Invalid credentials"), 401, "Invalid credentials"},
		{"authorization", apperror.Authorization("Admin access required"), 403, "Admin access required"},
		{"not found", apperror.NotFound("Room not found"), 404, "Room not found"},
		{"conflict", apperror.Conflict("Email already exists"), 409, "Email already exists"},
		{"external", apperror.External("AI did not respond.", errors.New("upstream 502")), 500, "AI did not respond."},
		{"internal", apperror.Internal("hash password", errors.New("boom")), 500, "Internal server error"},
		{"plain", errors.New("pq: connection refused"), 500, "Internal server error"},
		{"fiber", fiber.NewError(fiber.StatusUnprocessableEntity, "bad body"), 422, "bad body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware(logger.NewNopLogger()))
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			var res BaseResponse[any]
			require.NoError(t, json.Unmarshal(body, &res))
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.Code)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestJwtMiddleware(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	userId := uuid.New()

	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewNopLogger()))
	app.Get("/me", NewJwtMiddleware(tokens), func(ctx *fiber.Ctx) error {
		id, err := CurrentUserID(ctx)
		if err != nil {
			return err
		}
		return ctx.SendString(id.String())
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := tokens.Issue(userId)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, userId.String(), string(body))
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Email string `json:"email" validate:"required,email"`
		Otp   string `json:"otp" validate:"required,len=6"`
	}

	assert.NoError(t, ValidateRequest(req{Email: "a@b.co", Otp: "123456"}))

	err := ValidateRequest(req{Email: "nope", Otp: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, err.Error(), "Email must be a valid email")
	assert.Contains(t, err.Error(), "Otp must be exactly 6 characters")
}
