package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"warfront/internal/protocol"
)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	store Store
	log   *zap.Logger

	// Registered clients
	clients map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Inbound messages from clients
	inbound chan *ClientMessage

	// Outbound broadcasts, fed by the poller and the direct action path.
	// Bounded so producers are decoupled from the transport layer.
	outbound chan *protocol.Message

	mu sync.RWMutex
}

// ClientMessage wraps a message with its source client.
type ClientMessage struct {
	Client  *Client
	Message *protocol.Message
}

// NewHub creates a new Hub.
func NewHub(store Store, log *zap.Logger) *Hub {
	return &Hub{
		store:      store,
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *ClientMessage, 256),
		outbound:   make(chan *protocol.Message, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			// Admission must not block delivery to other clients
			go h.admit(client)

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case msg := <-h.inbound:
			// Handle messages in a goroutine to avoid blocking the hub
			go h.handleMessage(msg)

		case msg := <-h.outbound:
			h.fanOut(msg)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Receive queues an inbound message from a client.
func (h *Hub) Receive(client *Client, msg *protocol.Message) {
	h.inbound <- &ClientMessage{Client: client, Message: msg}
	metricMessagesIn.Inc()
}

// Broadcast queues a message for delivery to every connected client.
func (h *Hub) Broadcast(msg *protocol.Message) {
	h.outbound <- msg
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// fanOut delivers a message to every client. Delivery is best-effort: a
// client whose send buffer is full is pruned rather than stalling the rest.
// Runs on the hub goroutine, so dead clients are removed directly instead of
// going back through the unregister channel.
func (h *Hub) fanOut(msg *protocol.Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var dead []*Client
	for _, client := range clients {
		select {
		case client.send <- msg:
			metricMessagesOut.Inc()
		default:
			dead = append(dead, client)
		}
	}
	for _, client := range dead {
		client.prune.Do(metricPrunedClients.Inc)
		h.handleDisconnect(client)
	}
}

// admit queues the snapshot and only then makes the client broadcast-eligible,
// so initial_state is always the first message a client receives and no
// broadcast can land ahead of a snapshot that predates it.
func (h *Hub) admit(client *Client) {
	h.sendSnapshot(client)

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	metricConnectedClients.Inc()
}

// sendSnapshot sends the full current state to a newly connected client.
func (h *Hub) sendSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	views, err := h.store.GetFullState(ctx)
	if err != nil {
		// Admission still goes through; broadcasts will fill the client
		// in once the store recovers.
		h.log.Warn("snapshot query failed", zap.Error(err))
		h.sendError(client, "", protocol.ErrCodeStoreUnavailable, "snapshot unavailable")
		return
	}

	payload := protocol.InitialStatePayload{Territories: toTerritoryViews(views)}
	msg, err := protocol.NewMessage(protocol.TypeInitialState, payload)
	if err != nil {
		h.log.Error("failed to build snapshot message", zap.Error(err))
		return
	}
	client.Send(msg)
}

// handleDisconnect handles a client disconnecting. The send channel is never
// closed: handler goroutines may still hold the client and call Send, and a
// send on a closed channel would take down the process. The done channel tells
// WritePump and late senders the client is gone.
func (h *Hub) handleDisconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.done)
	metricConnectedClients.Dec()
}

// handleMessage routes one inbound message.
func (h *Hub) handleMessage(cm *ClientMessage) {
	handlers := NewHandlers(h)
	handlers.Handle(cm.Client, cm.Message)
}

// sendTo builds and sends a message to a single client.
func (h *Hub) sendTo(client *Client, msgType protocol.MessageType, payload interface{}) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		h.log.Error("failed to build message", zap.String("type", string(msgType)), zap.Error(err))
		return
	}
	client.Send(msg)
}

// sendError sends an error message to a client. The connection is kept: a
// malformed request is the sender's problem, not a transport failure.
func (h *Hub) sendError(client *Client, replyTo string, code protocol.ErrorCode, text string) {
	msg, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorPayload{
		Code:    code,
		Message: text,
	})
	if err != nil {
		return
	}
	if replyTo != "" {
		msg.ID = replyTo
	}
	client.Send(msg)
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *protocol.Message
	done chan struct{}
	// prune counts this client at most once in the pruned-clients metric,
	// however many full-buffer sends race the unregistration.
	prune sync.Once
	log   *zap.Logger
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
)

// NewClient creates a new client.
func NewClient(hub *Hub, conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan *protocol.Message, 256),
		done: make(chan struct{}),
		log:  log,
	}
}

// Send queues a message to be sent to the client. Messages for a disconnected
// client are dropped; a reply racing the disconnect must never be fatal.
func (c *Client) Send(msg *protocol.Message) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	default:
		// Channel full, client too slow
		c.prune.Do(metricPrunedClients.Inc)
		c.hub.Unregister(c)
	}
}

// ReadPump pumps messages from the WebSocket to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping malformed message", zap.Error(err))
			continue
		}

		c.hub.Receive(c, &msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("failed to marshal message", zap.Error(err))
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
