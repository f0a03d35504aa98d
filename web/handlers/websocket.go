package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
)

// TaskEvent is the message broadcast to WebSocket clients when a background
// task finishes.
type TaskEvent struct {
	Type       string `json:"type"`
	TaskID     string `json:"task_id"`
	UserID     int    `json:"user_id"`
	State      string `json:"state"`
	DurationMs int64  `json:"duration_ms"`
}

// NewTaskEvent builds the broadcast message for a finished task.
func NewTaskEvent(outcome engine.TaskOutcome) TaskEvent {
	return TaskEvent{
		Type:       "task_" + string(outcome.State),
		TaskID:     outcome.Task.ID,
		UserID:     outcome.Task.UserID,
		State:      string(outcome.State),
		DurationMs: outcome.Duration.Milliseconds(),
	}
}

// WebSocketHub fans task events out to connected clients. A client may
// subscribe to a single user's events or to all of them.
type WebSocketHub struct {
	clients    map[clientInterface]bool
	broadcast  chan TaskEvent
	register   chan clientInterface
	unregister chan clientInterface
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// clientInterface allows for both real clients and mock clients.
type clientInterface interface {
	getSendChannel() chan []byte
	// userFilter returns the user ID this client subscribed to, or zero
	// for all users.
	userFilter() int
	close()
}

// Client represents a WebSocket connection.
type Client struct {
	hub    *WebSocketHub
	conn   *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send   chan []byte
	userID int
}

func (c *Client) getSendChannel() chan []byte {
	return c.send
}

func (c *Client) userFilter() int {
	return c.userID
}

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// NewWebSocketHub creates a new WebSocket hub.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[clientInterface]bool),
		broadcast:  make(chan TaskEvent, 256),
		register:   make(chan clientInterface),
		unregister: make(chan clientInterface),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's event loop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: Failed to marshal task event: %v", err)
				continue
			}

			// Full Lock because slow clients get evicted below.
			h.mu.Lock()
			for client := range h.clients {
				if filter := client.userFilter(); filter != 0 && filter != event.UserID {
					continue
				}
				select {
				case client.getSendChannel() <- data:
				default:
					// Send buffer full, drop the client.
					close(client.getSendChannel())
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("WebSocket hub stopping...")
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[clientInterface]bool)
	h.mu.Unlock()
}

// Broadcast queues an event for delivery to matching clients. Never blocks;
// drops the event when the hub is backed up.
func (h *WebSocketHub) Broadcast(event TaskEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("WARNING: WebSocket broadcast channel full, dropping event")
	}
}

// Register adds a client to the hub.
func (h *WebSocketHub) Register(client clientInterface) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WebSocketHub) Unregister(client clientInterface) {
	h.unregister <- client
}

// ServeHTTP handles WebSocket upgrade requests. An optional user_id query
// parameter limits delivery to that user's task events.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" {
		allowedOrigins := map[string]bool{
			"http://localhost:6464": true,
			"http://127.0.0.1:6464": true,
		}
		if !allowedOrigins[origin] {
			http.Error(w, "Forbidden: invalid origin", http.StatusForbidden)
			return
		}
	}

	var userID int
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID = parsed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: []string{"localhost:6464", "127.0.0.1:6464"},
	})
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}

	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends queued events to the WebSocket connection.
func (c *Client) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()

		if err != nil {
			log.Printf("ERROR: WebSocket write failed: %v", err)
			return
		}
	}
}

// readPump drains incoming messages to detect disconnections. Clients do
// not send anything the hub acts on.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for {
		_, _, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
	}
}

// MockClient stands in for a connection in hub tests.
type MockClient struct {
	SendChan chan []byte
	UserID   int
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) userFilter() int {
	return m.UserID
}

func (m *MockClient) close() {}
