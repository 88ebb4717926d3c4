// Package bridge connects an external logistics subsystem to the territorial
// hub. It consumes territorial broadcasts on the subsystem's behalf and
// batches the subsystem's convoy route updates back to the hub, so neither
// side sees a flood of individual notifications.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"warfront/internal/protocol"
)

// Reference tuning values.
const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 1 * time.Second
	DefaultMaxRetries    = 5
	DefaultPingInterval  = 15 * time.Second

	// latencyAlpha weights the exponential moving average of observed
	// ping round trips.
	latencyAlpha = 0.2
)

// State is the bridge's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateBackingOff   State = "backing_off"
)

// Config holds bridge configuration.
type Config struct {
	HubURL        string // e.g. ws://localhost:30000/ws
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	PingInterval  time.Duration
}

// Bridge is a hub client with reconnect, filtering and batching logic.
type Bridge struct {
	cfg Config
	log *zap.Logger

	// Callbacks for the owning subsystem.
	OnTerritorialBatch func([]protocol.TerritorialEventPayload)
	OnConnect          func()
	OnFailure          func(error)

	sendChan chan *protocol.Message

	mu            sync.Mutex
	state         State
	pendingEvents []protocol.TerritorialEventPayload
	pendingRoutes []protocol.ConvoyRouteUpdatePayload

	statsMu        sync.Mutex
	messagesSent   int64
	batchesFlushed int64
	avgLatencyMS   float64
}

// New creates a bridge. Run must be called to connect.
func New(cfg Config, log *zap.Logger) *Bridge {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Bridge{
		cfg:      cfg,
		log:      log,
		state:    StateDisconnected,
		sendChan: make(chan *protocol.Message, 64),
	}
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	metricState.WithLabelValues(string(s)).Set(1)
	for _, other := range []State{StateDisconnected, StateConnecting, StateConnected, StateBackingOff} {
		if other != s {
			metricState.WithLabelValues(string(other)).Set(0)
		}
	}
}

// Run connects to the hub and serves until the context is cancelled. Failed
// connection attempts back off exponentially; once the bounded attempt count
// is exhausted the error is surfaced to the owner instead of retrying
// forever.
func (b *Bridge) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	attempts := 0
	for {
		b.setState(StateConnecting)
		conn, err := b.dial(ctx)
		if err != nil {
			attempts++
			metricReconnects.Inc()
			if attempts > b.cfg.MaxRetries {
				b.setState(StateDisconnected)
				failure := fmt.Errorf("bridge gave up after %d attempts: %w", attempts, err)
				b.log.Error("bridge connection failed permanently", zap.Error(failure))
				if b.OnFailure != nil {
					b.OnFailure(failure)
				}
				return failure
			}

			delay := bo.NextBackOff()
			b.setState(StateBackingOff)
			b.log.Warn("bridge connect failed, backing off",
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				b.setState(StateDisconnected)
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempts = 0
		bo.Reset()
		b.setState(StateConnected)
		b.log.Info("bridge connected", zap.String("url", b.cfg.HubURL))
		if b.OnConnect != nil {
			b.OnConnect()
		}

		err = b.serve(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			b.setState(StateDisconnected)
			return nil
		}
		b.log.Warn("bridge connection lost, reconnecting", zap.Error(err))
	}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, b.cfg.HubURL, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

// serve runs the read and write pumps until one fails or the context ends.
func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- b.readPump(serveCtx, conn) }()
	go func() { errCh <- b.writePump(serveCtx, conn) }()

	select {
	case <-serveCtx.Done():
		return serveCtx.Err()
	case err := <-errCh:
		return err
	}
}

// readPump filters hub messages for relevance and feeds the pending buffer.
func (b *Bridge) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			b.log.Warn("dropping malformed hub message", zap.Error(err))
			continue
		}

		b.handleHubMessage(&msg)
	}
}

// writePump sends queued messages, flushes batches on the interval timer and
// pings the hub to measure round-trip latency.
func (b *Bridge) writePump(ctx context.Context, conn *websocket.Conn) error {
	flushTicker := time.NewTicker(b.cfg.FlushInterval)
	defer flushTicker.Stop()
	pingTicker := time.NewTicker(b.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-b.sendChan:
			if err := b.write(ctx, conn, msg); err != nil {
				return err
			}

		case <-flushTicker.C:
			b.Flush()

		case <-pingTicker.C:
			ping, err := protocol.NewMessage(protocol.TypePing, protocol.PingPayload{
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				continue
			}
			if err := b.write(ctx, conn, ping); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) write(ctx context.Context, conn *websocket.Conn, msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("failed to marshal outbound message", zap.Error(err))
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return err
	}

	b.statsMu.Lock()
	b.messagesSent++
	b.statsMu.Unlock()
	metricMessagesSent.Inc()
	return nil
}

// handleHubMessage dispatches one inbound hub message.
func (b *Bridge) handleHubMessage(msg *protocol.Message) {
	switch {
	case msg.Type == protocol.TypePong:
		var payload protocol.PongPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		b.observeLatency(time.Now().UnixMilli() - payload.Timestamp)

	case protocol.IsTerritorial(msg.Type):
		var payload protocol.TerritorialEventPayload
		if err := msg.ParsePayload(&payload); err != nil {
			b.log.Warn("dropping malformed territorial payload", zap.Error(err))
			return
		}
		b.ingest(payload)
	}
	// Everything else (snapshots, other clients' traffic) is irrelevant here.
}

// ingest appends a relevant hub message to the pending buffer, flushing when
// the size trigger fires.
func (b *Bridge) ingest(payload protocol.TerritorialEventPayload) {
	b.mu.Lock()
	b.pendingEvents = append(b.pendingEvents, payload)
	full := len(b.pendingEvents) >= b.cfg.BatchSize
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

// Flush drains both pending buffers: accumulated territorial events go to
// the owner callback as one batch, accumulated convoy updates go to the hub
// as one batch message (or a single update when only one is pending).
func (b *Bridge) Flush() {
	b.mu.Lock()
	events := b.pendingEvents
	routes := b.pendingRoutes
	b.pendingEvents = nil
	b.pendingRoutes = nil
	b.mu.Unlock()

	if len(events) > 0 {
		if b.OnTerritorialBatch != nil {
			b.OnTerritorialBatch(events)
		}
		b.recordFlush(len(events))
	}

	if len(routes) > 0 {
		b.emitRoutes(routes)
		b.recordFlush(len(routes))
	}
}

func (b *Bridge) recordFlush(size int) {
	b.statsMu.Lock()
	b.batchesFlushed++
	b.statsMu.Unlock()
	metricBatchesFlushed.Inc()
	metricBatchSize.Observe(float64(size))
}

// emitRoutes sends pending convoy updates to the hub.
func (b *Bridge) emitRoutes(routes []protocol.ConvoyRouteUpdatePayload) {
	var msg *protocol.Message
	var err error
	if len(routes) == 1 {
		msg, err = protocol.NewMessage(protocol.TypeConvoyRouteUpdate, routes[0])
	} else {
		msg, err = protocol.NewMessage(protocol.TypeConvoyRouteBatchUpdate, protocol.ConvoyRouteBatchPayload{
			BatchSize: len(routes),
			Updates:   routes,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	if err != nil {
		b.log.Error("failed to build convoy update", zap.Error(err))
		return
	}
	b.send(msg)
}

// send queues a message for the write pump, dropping when the queue is full
// (the hub treats updates as latest-wins, so a drop is not data loss the
// poller cannot repair).
func (b *Bridge) send(msg *protocol.Message) {
	select {
	case b.sendChan <- msg:
	default:
		b.log.Warn("bridge send queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

// observeLatency folds one round-trip sample into the moving average.
func (b *Bridge) observeLatency(rttMillis int64) {
	if rttMillis < 0 {
		rttMillis = 0
	}
	b.statsMu.Lock()
	if b.avgLatencyMS == 0 {
		b.avgLatencyMS = float64(rttMillis)
	} else {
		b.avgLatencyMS = latencyAlpha*float64(rttMillis) + (1-latencyAlpha)*b.avgLatencyMS
	}
	b.statsMu.Unlock()
	metricLatency.Set(b.Stats().AvgLatencyMS)
}

// Stats returns the bridge's performance bookkeeping snapshot.
func (b *Bridge) Stats() protocol.ConvoyMetrics {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return protocol.ConvoyMetrics{
		MessagesSent:   b.messagesSent,
		BatchesFlushed: b.batchesFlushed,
		AvgLatencyMS:   b.avgLatencyMS,
	}
}
