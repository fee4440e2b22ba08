package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/events"
	"github.com/astrafabric/monitor/internal/middleware"
	"github.com/astrafabric/monitor/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// client is one dashboard connection. customerID is the verified token
// claim; an empty value means the stream is not authenticated and every
// update is delivered.
type client struct {
	conn       *websocket.Conn
	send       chan []byte
	customerID string
}

func (c *client) wants(customerID string) bool {
	return c.customerID == "" || c.customerID == customerID
}

// Hub pushes scheduler output to connected dashboard clients.
// Slow clients whose buffer fills up are disconnected.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*client]struct{}
	metrics  *telemetry.Metrics
}

// NewHub creates a hub. With no allowed origins every origin is accepted.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// SetMetrics attaches the connected-clients gauge
func (h *Hub) SetMetrics(m *telemetry.Metrics) {
	h.metrics = m
}

// SetupRoutes configures the dashboard stream route
func (h *Hub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/dashboard", h.HandleWebSocket)
}

// HandleWebSocket upgrades a dashboard connection and streams updates to it
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Dashboard: failed to upgrade WebSocket: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	c.customerID, _ = middleware.CustomerFromContext(r.Context())
	h.register(c)
	log.Printf("Dashboard: client connected from %s", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishMetrics implements events.Broadcaster. Only clients of the
// owning customer receive the update.
func (h *Hub) PublishMetrics(customerID, resourceID string, sample database.MetricsSample) {
	h.broadcast(customerID, events.NewMetricsUpdate(resourceID, sample))
}

// PublishAlert implements events.Broadcaster
func (h *Hub) PublishAlert(customerID string, alert database.ActiveAlert) {
	h.broadcast(customerID, events.NewAlertEvent(alert))
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.SetDashboardClients(0)
}

func (h *Hub) broadcast(customerID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Dashboard: failed to marshal update: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(customerID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("Dashboard: dropping slow client %s", c.conn.RemoteAddr())
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.metrics.SetDashboardClients(len(h.clients))
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.metrics.SetDashboardClients(len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.SetDashboardClients(len(h.clients))
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Dashboard: websocket error: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
