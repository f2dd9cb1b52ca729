package ws

import (
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/andeslabs/cryptoqr/backend/internal/infrastructure/monitoring"
	"github.com/andeslabs/cryptoqr/backend/internal/logging"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin filtering happens at the CORS layer
	},
}

// Handler streams configuration change events to connected clients.
type Handler struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a WebSocket event handler.
func NewHandler(metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{
		conns:   make(map[*websocket.Conn]struct{}),
		metrics: metrics,
		log:     log,
	}
}

// HandleConnection upgrades the request and keeps the connection registered
// until the client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.register(conn)
	defer h.unregister(conn)

	h.send(conn, map[string]interface{}{
		"type":    "system",
		"message": "Conectado al servicio de directorios QR",
	})

	// Read loop: only ping is meaningful, everything else is drained so
	// close frames are processed.
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg["type"] == "ping" {
			h.send(conn, map[string]interface{}{"type": "pong"})
		}
	}
}

// BroadcastEvent delivers a configuration change event to every connected
// client. Registered as a configuration observer.
func (h *Handler) BroadcastEvent(event types.ChangeEvent) {
	payload, err := sonic.Marshal(map[string]interface{}{
		"type":  "configuration_change",
		"event": event,
	})
	if err != nil {
		h.log.Error("event marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.conns, conn)
			if h.metrics != nil {
				h.metrics.WSDisconnect()
			}
		}
	}
	if h.metrics != nil {
		h.metrics.RecordWSEvent()
	}
}

func (h *Handler) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnect()
	}
}

func (h *Handler) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
		if h.metrics != nil {
			h.metrics.WSDisconnect()
		}
	}
	h.mu.Unlock()
}

func (h *Handler) send(conn *websocket.Conn, payload map[string]interface{}) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	conn.WriteMessage(websocket.TextMessage, data)
	h.mu.Unlock()
}
