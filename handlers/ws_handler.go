package handlers

import (
	"context"
	"log"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/yieldnest/invest_api/services"
	"github.com/yieldnest/invest_api/websocket"
)

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeWs authenticates with a first {"type":"auth","token":...} message,
// then pushes ledger events until the client disconnects.
func (h *Handler) ServeWs(c *websocketcontrib.Conn) {
	var authMsg authMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	claims, err := h.parseToken(authMsg.Token)
	if err != nil {
		log.Printf("WebSocket auth failed: invalid token, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		log.Printf("WebSocket auth failed: invalid user_id %q", rawID)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid user ID"})
		c.Close()
		return
	}

	id, err := h.Ledger.ResolveIdentity(context.Background(), services.Identity{UserID: userID})
	if err != nil {
		log.Printf("WebSocket auth failed for %s: %v", userID, err)
		_ = c.WriteJSON(fiber.Map{"error": services.Reason(err)})
		c.Close()
		return
	}
	userID = id.UserID

	_ = c.WriteJSON(fiber.Map{"type": "ready"})
	client := &websocket.Client{UserID: userID, Conn: c}
	if !h.Hub.Join(client) {
		c.Close()
		return
	}
	defer func() {
		h.Hub.Leave(client)
		c.Close()
	}()

	// The socket is push-only; reads only detect the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Printf("WebSocket read error for client %s: %v", userID, err)
			}
			return
		}
	}
}
