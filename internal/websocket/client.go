package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/Prophet73/ai-chat-test/internal/dto"
	"github.com/Prophet73/ai-chat-test/internal/service"
	"github.com/Prophet73/ai-chat-test/pkg/rag/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Full-text questions can carry long quotations.
	maxMessageSize = 64 * 1024
)

// Client owns one websocket connection. Inbound frames are chat
// requests, outbound frames are the same events the SSE endpoint
// emits, one JSON object per frame.
type Client struct {
	conn        *websocket.Conn
	chatService service.IChatService

	// Buffered channel of outbound frames.
	send chan []byte
}

func newClient(conn *websocket.Conn, chatService service.IChatService) *Client {
	return &Client{
		conn:        conn,
		chatService: chatService,
		send:        make(chan []byte, 256),
	}
}

// readPump reads chat requests and runs each turn sequentially. A
// malformed frame produces an error event instead of dropping the
// connection.
func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error: %v", err)
			}
			return
		}

		var request dto.ChatRequest
		if err := json.Unmarshal(payload, &request); err != nil || request.UserInput == "" || request.SessionID == "" {
			c.enqueue(stream.Error("Некорректный формат запроса."))
			continue
		}

		for event := range c.chatService.Chat(ctx, &request) {
			c.enqueue(event)
		}
	}
}

func (c *Client) enqueue(event stream.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		// Slow consumer. Drop the frame rather than stall the turn.
		log.Printf("[WS] outbound buffer full, dropping frame")
	}
}

// writePump serializes all writes to the connection and keeps it
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
