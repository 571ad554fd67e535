package handler_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"bchat-be/internal/handler"
	"bchat-be/internal/pkg/identity"
	"bchat-be/internal/pkg/logger"
	internalWS "bchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWsHandshake(t *testing.T) {
	tokens := identity.NewTokenService("secret", time.Hour)
	h := handler.NewSocketHandler(internalWS.NewHub(logger.NewNopLogger()), tokens, logger.NewNopLogger())

	app := fiber.New()
	h.RegisterRoutes(app)

	valid, err := tokens.Issue(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"missing token", "/ws", "", fiber.StatusUnauthorized},
		{"invalid query token", "/ws?token=garbage", "", fiber.StatusUnauthorized},
		{"invalid header token", "/ws", "Bearer garbage", fiber.StatusUnauthorized},
		{"valid token without upgrade", "/ws?token=" + valid, "", fiber.StatusUpgradeRequired},
		{"valid header without upgrade", "/ws", "Bearer " + valid, fiber.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
