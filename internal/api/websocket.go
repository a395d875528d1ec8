package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket event types
const (
	// Server -> Client
	EventConnected      = "connected"
	EventWorkbookLoaded = "workbook:loaded"
	EventConfigUpdated  = "config:updated"
	EventPong           = "pong"

	// Client -> Server
	MsgTypePing = "ping"
)

// sendBuffer is the per-client queue length; events beyond it are dropped
// for that client.
const sendBuffer = 16

// Event is one message on the event stream
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// EventHub fans server events out to every connected WebSocket client
type EventHub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewEventHub creates an empty hub
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The UI may be served by a dev server on another port
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleWebSocket upgrades the connection and streams events until the
// client disconnects
func (h *EventHub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{conn: ws, send: make(chan Event, sendBuffer)}
	h.register(client)

	done := make(chan struct{})
	go h.writeLoop(client, done)

	h.enqueue(client, Event{Type: EventConnected, Timestamp: time.Now().UnixMilli()})

	for {
		var msg Event
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			break
		}
		if msg.Type == MsgTypePing {
			h.enqueue(client, Event{Type: EventPong, Timestamp: time.Now().UnixMilli()})
		}
	}

	h.unregister(client)
	<-done
	ws.Close()
	return nil
}

func (h *EventHub) writeLoop(client *wsClient, done chan<- struct{}) {
	defer close(done)
	for evt := range client.send {
		if err := client.conn.WriteJSON(evt); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			// Drain so unregister never blocks on a full queue.
			for range client.send {
			}
			return
		}
	}
}

func (h *EventHub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.Int("clients", n))
}

func (h *EventHub) unregister(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.Int("clients", n))
}

// enqueue sends to one client unless it has already gone away.
func (h *EventHub) enqueue(client *wsClient, evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- evt:
	default:
	}
}

// Broadcast queues evt for every connected client. Slow clients miss events
// instead of blocking the caller.
func (h *EventHub) Broadcast(evt Event) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- evt:
		default:
			h.logger.Debug("dropping event for slow client", zap.String("type", evt.Type))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
