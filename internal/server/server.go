// Package server implements the territorial broadcast server.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"warfront/internal/database"
	"warfront/internal/protocol"
)

// Store is the slice of the territorial store the server depends on. It is
// an interface so the hub and poller can be tested against an in-memory
// substitute.
type Store interface {
	GetFullState(ctx context.Context) ([]database.TerritoryView, error)
	GetTerritoryView(ctx context.Context, id string) (*database.TerritoryView, error)
	GetEventViewsSince(ctx context.Context, sinceMillis, afterID int64) ([]database.EventView, error)
	ApplyInfluenceAction(ctx context.Context, territoryID, factionID string, delta int) (*database.ActionResult, error)
}

// Config holds server configuration.
type Config struct {
	Addr         string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Server is the main territorial server.
type Server struct {
	store    Store
	hub      *Hub
	poller   *Poller
	upgrader websocket.Upgrader
	addr     string
	server   *http.Server
	log      *zap.Logger
	cancel   context.CancelFunc
}

// New creates a new server around an already-opened store.
func New(cfg Config, store Store, log *zap.Logger) *Server {
	s := &Server{
		store: store,
		addr:  cfg.Addr,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}

	s.hub = NewHub(store, log.Named("hub"))
	s.poller = NewPoller(store, s.hub, cfg.PollInterval, cfg.PollTimeout, log.Named("poller"))

	return s
}

// Hub exposes the server's hub, mainly for tests and embedding.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the server. It blocks until the listener fails or the server
// is stopped.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Operational metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Full-state snapshot for non-socket consumers
	mux.HandleFunc("/api/state", s.handleState)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	s.log.Info("territorial server starting",
		zap.String("addr", s.addr),
		zap.Duration("poll_interval", s.poller.interval))

	go s.hub.Run(ctx)
	go s.poller.Run(ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(s.hub, conn, s.log.Named("client"))
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// handleState returns the current full state as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := s.store.GetFullState(ctx)
	if err != nil {
		s.log.Warn("full state query failed", zap.Error(err))
		http.Error(w, "Failed to load state", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTerritoryViews(views))
}

// toTerritoryViews converts store rows to wire views.
func toTerritoryViews(rows []database.TerritoryView) []protocol.TerritoryView {
	views := make([]protocol.TerritoryView, len(rows))
	for i, row := range rows {
		views[i] = toTerritoryView(row)
	}
	return views
}

func toTerritoryView(row database.TerritoryView) protocol.TerritoryView {
	return protocol.TerritoryView{
		ID:             row.ID,
		Name:           row.Name,
		Type:           string(row.Type),
		StrategicValue: row.StrategicValue,
		ControllerID:   nullString(row.ControllerID),
		ControllerName: nullString(row.ControllerName),
		Contested:      row.Contested,
	}
}

func nullString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
