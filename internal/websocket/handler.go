package websocket

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Prophet73/ai-chat-test/internal/service"
)

// Handler upgrades /ws requests and serves the chat protocol over the
// connection.
type Handler struct {
	chatService service.IChatService
}

func NewHandler(chatService service.IChatService) *Handler {
	return &Handler{chatService: chatService}
}

// Upgrade rejects plain HTTP requests before the websocket handshake.
func (h *Handler) Upgrade() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := newClient(conn, h.chatService)
		go client.writePump()
		client.readPump(ctx)
		close(client.send)
	})
}
