package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"warfront/internal/database"
	"warfront/internal/protocol"
)

// Default poller tuning. The interval bounds how stale a client's view can
// get for changes that bypass the hub's direct path.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Second
)

// Poller periodically scans the territorial event log and turns new rows
// into hub broadcasts. It is the bridge between the store's append-only log
// and the hub's push model; the store never learns about networking.
type Poller struct {
	store    Store
	hub      *Hub
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	// Watermark: timestamp and ID of the last event broadcast. Advanced to
	// the latest event seen, never to wall-clock now, so a slow cycle
	// cannot skip events that landed while it ran.
	lastMillis int64
	lastID     int64
}

// NewPoller creates a poller that starts at the current time, so only events
// logged after process start are broadcast.
func NewPoller(store Store, hub *Hub, interval, timeout time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		store:      store,
		hub:        hub,
		interval:   interval,
		timeout:    timeout,
		log:        log,
		lastMillis: time.Now().UnixMilli(),
	}
}

// Run polls on a fixed interval until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one cycle. A failed query holds the watermark and is retried on
// the next tick; a transient store error never crashes the process.
func (p *Poller) poll(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	events, err := p.store.GetEventViewsSince(queryCtx, p.lastMillis, p.lastID)
	if err != nil {
		metricPollFailures.Inc()
		p.log.Warn("event poll failed, holding watermark",
			zap.Int64("since", p.lastMillis),
			zap.Error(err))
		return
	}
	metricPollCycles.Inc()

	for _, ev := range events {
		msg, err := eventMessage(ev)
		if err != nil {
			p.log.Error("failed to build event broadcast", zap.Int64("event_id", ev.ID), zap.Error(err))
		} else {
			p.hub.Broadcast(msg)
			metricEventsBroadcast.Inc()
		}

		p.lastMillis = ev.StartedAt
		p.lastID = ev.ID
	}
}

// eventMessage maps one stored event to its broadcast message.
func eventMessage(ev database.EventView) (*protocol.Message, error) {
	return protocol.NewMessage(protocol.TerritorialType(ev.EventType), protocol.TerritorialEventPayload{
		TerritoryID:    ev.TerritoryID,
		TerritoryName:  ev.TerritoryName,
		EventType:      ev.EventType,
		FactionID:      nullString(ev.FactionID),
		FactionName:    nullString(ev.FactionName),
		ControllerID:   nullString(ev.ControllerID),
		ControllerName: nullString(ev.ControllerName),
		Contested:      ev.Contested,
		Timestamp:      ev.StartedAt,
	})
}
