package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/events"
	"github.com/astrafabric/monitor/internal/middleware"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	server := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/dashboard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("Dial() error = %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsMetricsUpdate(t *testing.T) {
	h := NewHub(nil)
	conn, cleanup := dialHub(t, h)
	defer cleanup()
	waitForClients(t, h, 1)

	status := 500
	h.PublishMetrics("cust-1", "res-1", database.MetricsSample{StatusCode: &status, Timestamp: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var update events.MetricsUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if update.Type != "metrics-update" || update.ResourceID != "res-1" {
		t.Errorf("unexpected update: %+v", update)
	}
	if update.Metrics.StatusCode == nil || *update.Metrics.StatusCode != 500 {
		t.Errorf("unexpected metrics: %+v", update.Metrics)
	}
}

func TestHub_BroadcastsAlerts(t *testing.T) {
	h := NewHub(nil)
	conn, cleanup := dialHub(t, h)
	defer cleanup()
	waitForClients(t, h, 1)

	h.PublishAlert("cust-1", database.ActiveAlert{ResourceID: "res-1", Metric: "cpu", Severity: database.SeverityCritical})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !strings.Contains(string(data), `"type":"alert"`) {
		t.Errorf("unexpected message: %s", data)
	}
}

func TestHub_DeliversOnlyToOwningCustomer(t *testing.T) {
	h := NewHub(nil)
	auth := middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{Secret: "hub-secret"})
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	server := httptest.NewServer(auth.Wrap(mux))
	defer server.Close()

	dial := func(customerID string) *websocket.Conn {
		token, err := auth.GenerateToken(customerID, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/dashboard?token=" + token
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		return conn
	}
	connA := dial("cust-a")
	defer connA.Close()
	connB := dial("cust-b")
	defer connB.Close()
	waitForClients(t, h, 2)

	h.PublishMetrics("cust-a", "res-a", database.MetricsSample{Timestamp: time.Now()})
	h.PublishAlert("cust-a", database.ActiveAlert{ResourceID: "res-a", Metric: "cpu", Severity: database.SeverityCritical})
	h.PublishMetrics("cust-b", "res-b", database.MetricsSample{Timestamp: time.Now()})

	read := func(conn *websocket.Conn) string {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		return string(data)
	}

	if msg := read(connA); !strings.Contains(msg, `"resource_id":"res-a"`) || !strings.Contains(msg, "metrics-update") {
		t.Errorf("cust-a first message = %s", msg)
	}
	if msg := read(connA); !strings.Contains(msg, `"type":"alert"`) {
		t.Errorf("cust-a second message = %s", msg)
	}
	// updates are sent in publish order, so cust-b's first message proves
	// it never saw cust-a's resource
	if msg := read(connB); !strings.Contains(msg, `"resource_id":"res-b"`) {
		t.Errorf("cust-b received another customer's update: %s", msg)
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := NewHub(nil)
	conn, cleanup := dialHub(t, h)
	defer cleanup()
	waitForClients(t, h, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitForClients(t, h, 0)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	h := NewHub([]string{"https://dashboard.example.com"})
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/dashboard"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake to fail for a foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub(nil)
	_, cleanup := dialHub(t, h)
	defer cleanup()
	waitForClients(t, h, 1)

	h.Close()
	if h.ClientCount() != 0 {
		t.Errorf("expected no clients after Close, got %d", h.ClientCount())
	}
}
