package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/nayana/internal/logger"
)

// BroadcastInterval is how often new updates are pushed to clients.
const BroadcastInterval = 66 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// GazeHandler pushes pipeline updates to WebSocket clients as JSON.
type GazeHandler struct {
	pipeline Pipeline
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	once     sync.Once
}

// NewGazeHandler creates a GazeHandler and starts its broadcast loop.
func NewGazeHandler(p Pipeline) *GazeHandler {
	h := &GazeHandler{
		pipeline: p,
		clients:  make(map[*websocket.Conn]bool),
		stopCh:   make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *GazeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(logger.Fields{"error": err.Error()}, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reading keeps the connection alive and notices when the client leaves.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *GazeHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop.
func (h *GazeHandler) Close() {
	h.once.Do(func() { close(h.stopCh) })
}

// broadcast sends each new update once to every client.
func (h *GazeHandler) broadcast() {
	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()

	var lastSession string
	lastFrame := -1
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}
		u, ok := h.pipeline.Latest()
		if !ok || (u.SessionID == lastSession && u.Frame == lastFrame) {
			continue
		}
		lastSession, lastFrame = u.SessionID, u.Frame

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteJSON(u); err != nil {
				logger.Debug(logger.Fields{"error": err.Error()}, "websocket write failed")
			}
		}
		h.mu.RUnlock()
	}
}
