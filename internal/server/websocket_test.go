package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"warfront/internal/database"
	"warfront/internal/protocol"
)

// newTestServer wires a real store behind a hub served over httptest.
// The poller is not started; tests that need it run it themselves.
func newTestServer(t *testing.T) (*Server, *database.DB, *httptest.Server) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), database.Options{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.CreateFaction(ctx, "alpha", "Alpha Legion", "#ff0000"); err != nil {
		t.Fatalf("Failed to seed faction: %v", err)
	}
	if err := db.CreateFaction(ctx, "bravo", "Bravo Syndicate", "#0000ff"); err != nil {
		t.Fatalf("Failed to seed faction: %v", err)
	}
	if err := db.CreateTerritory(ctx, "harbor", "Harbor District", database.TerritoryDistrict, 8); err != nil {
		t.Fatalf("Failed to seed territory: %v", err)
	}
	if err := db.CreateTerritory(ctx, "outskirts", "Outskirts", database.TerritoryRegion, 2); err != nil {
		t.Fatalf("Failed to seed territory: %v", err)
	}

	srv := New(Config{PollInterval: 50 * time.Millisecond, PollTimeout: time.Second}, db, zap.NewNop())

	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(runCtx)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	return srv, db, ts
}

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return &msg
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType protocol.MessageType, payload interface{}) {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		t.Fatalf("Failed to build message: %v", err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialTestServer(t, ts)

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeInitialState {
		t.Fatalf("Expected initial_state first, got %s", msg.Type)
	}

	var payload protocol.InitialStatePayload
	if err := msg.ParsePayload(&payload); err != nil {
		t.Fatalf("Failed to parse snapshot: %v", err)
	}
	if len(payload.Territories) != 2 {
		t.Fatalf("Expected 2 territories in snapshot, got %d", len(payload.Territories))
	}
	if payload.Territories[0].ID != "harbor" {
		t.Errorf("Expected harbor first by strategic value, got %s", payload.Territories[0].ID)
	}
}

func TestPingPong(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialTestServer(t, ts)
	readMessage(t, conn) // snapshot

	sendMessage(t, conn, protocol.TypePing, protocol.PingPayload{Timestamp: 12345})

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypePong {
		t.Fatalf("Expected pong, got %s", msg.Type)
	}
	var payload protocol.PongPayload
	if err := msg.ParsePayload(&payload); err != nil {
		t.Fatalf("Failed to parse pong: %v", err)
	}
	if payload.Timestamp != 12345 {
		t.Errorf("Expected pong to echo timestamp 12345, got %d", payload.Timestamp)
	}
}

func TestTargetedQuery(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialTestServer(t, ts)
	readMessage(t, conn) // snapshot

	sendMessage(t, conn, protocol.TypeRequestUpdate, protocol.RequestUpdatePayload{TerritoryID: "harbor"})

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeTerritoryUpdate {
		t.Fatalf("Expected territory_update, got %s", msg.Type)
	}
	var payload protocol.TerritoryUpdatePayload
	if err := msg.ParsePayload(&payload); err != nil {
		t.Fatalf("Failed to parse update: %v", err)
	}
	if payload.Territory.Name != "Harbor District" {
		t.Errorf("Expected Harbor District, got %q", payload.Territory.Name)
	}
}

func TestInfluenceActionBroadcastsCapture(t *testing.T) {
	_, _, ts := newTestServer(t)

	actor := dialTestServer(t, ts)
	readMessage(t, actor) // snapshot
	watcher := dialTestServer(t, ts)
	readMessage(t, watcher) // snapshot

	sendMessage(t, actor, protocol.TypeInfluenceAction, protocol.InfluenceActionPayload{
		TerritoryID: "harbor",
		FactionID:   "alpha",
		Delta:       60,
	})

	for _, conn := range []*websocket.Conn{actor, watcher} {
		msg := readMessage(t, conn)
		if msg.Type != protocol.TypeTerritorialCapture {
			t.Fatalf("Expected territorial_capture broadcast, got %s", msg.Type)
		}
		var payload protocol.TerritorialEventPayload
		if err := msg.ParsePayload(&payload); err != nil {
			t.Fatalf("Failed to parse capture: %v", err)
		}
		if payload.ControllerID != "alpha" || payload.ControllerName != "Alpha Legion" {
			t.Errorf("Expected alpha as controller, got %s (%s)", payload.ControllerID, payload.ControllerName)
		}
	}
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialTestServer(t, ts)
	readMessage(t, conn) // snapshot

	// Not JSON at all: dropped without tearing down the connection.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("Failed to send garbage: %v", err)
	}

	sendMessage(t, conn, protocol.TypePing, protocol.PingPayload{Timestamp: 7})
	msg := readMessage(t, conn)
	if msg.Type != protocol.TypePong {
		t.Fatalf("Expected connection to survive garbage and answer ping, got %s", msg.Type)
	}
}

func TestUnknownTypeGetsErrorReply(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialTestServer(t, ts)
	readMessage(t, conn) // snapshot

	sendMessage(t, conn, protocol.MessageType("launch_orbital_strike"), struct{}{})

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeError {
		t.Fatalf("Expected error reply, got %s", msg.Type)
	}
	var payload protocol.ErrorPayload
	if err := msg.ParsePayload(&payload); err != nil {
		t.Fatalf("Failed to parse error: %v", err)
	}
	if payload.Code != protocol.ErrCodeUnknownType {
		t.Errorf("Expected unknown_type code, got %s", payload.Code)
	}
}

func TestPollerDeliversNonNetworkedChanges(t *testing.T) {
	srv, db, ts := newTestServer(t)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.poller.Run(runCtx)

	conn := dialTestServer(t, ts)
	readMessage(t, conn) // snapshot

	// A mutation made outside the hub, as game logic would.
	if _, err := db.ApplyInfluenceAction(context.Background(), "outskirts", "bravo", 70); err != nil {
		t.Fatalf("Direct store mutation failed: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeTerritorialCapture {
		t.Fatalf("Expected poller to broadcast the capture, got %s", msg.Type)
	}
	var payload protocol.TerritorialEventPayload
	if err := msg.ParsePayload(&payload); err != nil {
		t.Fatalf("Failed to parse capture: %v", err)
	}
	if payload.TerritoryID != "outskirts" || payload.ControllerID != "bravo" {
		t.Errorf("Unexpected capture payload: %+v", payload)
	}
}

// Scaled-down load scenario: one controller change must reach 50 connected
// clients within the 500ms latency bound.
func TestBroadcastLatencyWithManyClients(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load scenario in short mode")
	}
	_, _, ts := newTestServer(t)

	const clientCount = 50
	conns := make([]*websocket.Conn, clientCount)
	for i := range conns {
		conns[i] = dialTestServer(t, ts)
		readMessage(t, conns[i]) // snapshot
	}

	start := time.Now()
	sendMessage(t, conns[0], protocol.TypeInfluenceAction, protocol.InfluenceActionPayload{
		TerritoryID: "harbor",
		FactionID:   "alpha",
		Delta:       60,
	})

	for i, conn := range conns {
		msg := readMessage(t, conn)
		if msg.Type != protocol.TypeTerritorialCapture {
			t.Fatalf("Client %d: expected territorial_capture, got %s", i, msg.Type)
		}
	}

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Broadcast reached %d clients in %v, want under 500ms", clientCount, elapsed)
	}
}
