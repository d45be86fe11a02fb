package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/careerforge/console/internal/contracts"
	"github.com/careerforge/console/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 16
	broadcastQueue = 256
)

// Event is the envelope pushed to dashboard clients
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub pushes evaluation records to connected websocket clients
// ⭐ SSOT: 대시보드 실시간 피드는 여기서만
type Hub struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHub creates a new websocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.Component("ws_hub"),
	}
}

// Run dispatches messages until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", total).Debug("Dashboard client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", total).Debug("Dashboard client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client <- msg:
				default:
					// slow client, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify implements Notifier by broadcasting the record
func (h *Hub) Notify(ctx context.Context, record *contracts.EvaluationRecord) error {
	h.Broadcast("evaluation", record)
	return nil
}

// Broadcast queues an event for every client; drops it if the queue is full
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to marshal broadcast")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, event dropped")
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	select {
	case h.register <- send:
	case <-h.done:
		return
	}

	peerGone := make(chan struct{})
	go h.readPump(conn, peerGone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.leave(send)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.leave(send)
				return
			}

		case <-peerGone:
			h.leave(send)
			return
		}
	}
}

// readPump discards client frames and signals done when the peer goes away
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// leave unregisters send unless the hub already stopped
func (h *Hub) leave(send chan []byte) {
	select {
	case h.unregister <- send:
	case <-h.done:
	}
}
