package server

import (
	"log"

	"cnom/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketPaymentsHandler relays payment events to staff dashboards.
// RequireRoles must run first so the caller's id is in the locals.
// @Summary Live payment events
// @Tags payments
// @Param access_token query string false "bearer token for browser clients"
// @Param demo_session query string false "demo session token"
// @Success 101
// @Failure 426 {object} models.ErrorResponse
// @Router /ws/payments [get]
func (s *Server) WebSocketPaymentsHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalUserID).(string)
		if userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket payments: failed to register %s: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
		}
		return upgrade(c)
	}
}
