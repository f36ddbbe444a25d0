package server

import (
	"net/http"
	"time"

	"auction-core/internal/models"
	"auction-core/internal/notification"
	"auction-core/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler bridges hub topics to WebSocket clients
type StreamHandler struct {
	hub      *notification.Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a handler streaming from hub
func NewStreamHandler(hub *notification.Hub) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// AuctionStream handles GET /ws/topic/auction/:auction_id
func (h *StreamHandler) AuctionStream(c *gin.Context) {
	h.stream(c, models.AuctionTopic(c.Param("auction_id")))
}

// UserStream handles GET /ws/user/:user_id/notifications
func (h *StreamHandler) UserStream(c *gin.Context) {
	h.stream(c, models.UserTopic(c.Param("user_id")))
}

// stream subscribes before upgrading so no event published after the
// handshake is missed. Events reach the socket in hub order.
func (h *StreamHandler) stream(c *gin.Context, topic string) {
	out := make(chan models.Event)
	done := make(chan struct{})
	sub := h.hub.Subscribe(topic, func(evt models.Event) {
		select {
		case out <- evt:
		case <-done:
		}
	})
	defer sub.Unsubscribe()
	defer close(done)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("websocket upgrade failed", map[string]any{"topic": topic, "error": err.Error()})
		return
	}
	defer conn.Close()

	utils.Debug("websocket subscribed", map[string]any{"topic": topic})

	// the read side only serves control frames and notices the client leaving
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			utils.Debug("websocket closed", map[string]any{"topic": topic})
			return
		case evt := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wirePayload(evt)); err != nil {
				utils.Warn("websocket write failed", map[string]any{"topic": topic, "error": err.Error()})
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// wirePayload sends new bids to auction watchers as the bare
// {amount, timestamp, bidder:{firstName, lastName}} broadcast. Every other
// event keeps its envelope.
func wirePayload(evt models.Event) any {
	if b, ok := evt.Data.(models.BidBroadcast); ok && evt.Type == models.EventNewBid {
		return b
	}
	return evt
}
