package handler

import (
	"bchat-be/internal/pkg/identity"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/pkg/serverutils"
	internalWS "bchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type SocketHandler struct {
	hub      *internalWS.Hub
	verifier identity.Verifier
	logger   logger.ILogger
}

func NewSocketHandler(hub *internalWS.Hub, verifier identity.Verifier, log logger.ILogger) *SocketHandler {
	return &SocketHandler{
		hub:      hub,
		verifier: verifier,
		logger:   log,
	}
}

// ServeWs authenticates the handshake and upgrades. Bad credentials never reach the upgrade.
func (h *SocketHandler) ServeWs(c *fiber.Ctx) error {
	// Priority 1: Query Param (Browser standard)
	tokenStr := c.Query("token")

	// Priority 2: Authorization Header (Tooling/Non-browser standard)
	if tokenStr == "" {
		tokenStr = identity.BearerFromHeader(c.Get("Authorization"))
	}

	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	userID, err := h.verifier.Verify(tokenStr)
	if err != nil {
		h.logger.Warn("SocketHandler", "Invalid token in WS handshake", map[string]interface{}{"ip": c.IP()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(h.hub, conn, userID)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *SocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
