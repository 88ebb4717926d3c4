package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"warfront/internal/database"
	"warfront/internal/protocol"
)

// storeTimeout bounds every store call made on behalf of a client request.
const storeTimeout = 5 * time.Second

// Handlers processes incoming messages.
type Handlers struct {
	hub *Hub
}

// NewHandlers creates a new handler set.
func NewHandlers(hub *Hub) *Handlers {
	return &Handlers{hub: hub}
}

// Handle routes a message to the appropriate handler. Errors are reported to
// the sender; the connection is never torn down for a bad message.
func (h *Handlers) Handle(client *Client, msg *protocol.Message) {
	var err error

	switch msg.Type {
	case protocol.TypePing:
		err = h.handlePing(client, msg)
	case protocol.TypeRequestUpdate:
		err = h.handleRequestUpdate(client, msg)
	case protocol.TypeInfluenceAction:
		err = h.handleInfluenceAction(client, msg)
	case protocol.TypeConvoyRouteUpdate, protocol.TypeConvoyRouteBatchUpdate:
		// Bridge-originated updates are relayed to everyone as-is.
		h.hub.Broadcast(msg)
	default:
		h.hub.sendError(client, msg.ID, protocol.ErrCodeUnknownType, "unknown message type")
		return
	}

	if err != nil {
		h.hub.sendError(client, msg.ID, errorCode(err), err.Error())
	}
}

// errorCode maps store errors onto wire error codes.
func errorCode(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, database.ErrTerritoryNotFound):
		return protocol.ErrCodeTerritoryNotFound
	case errors.Is(err, database.ErrFactionNotFound):
		return protocol.ErrCodeFactionNotFound
	case errors.Is(err, database.ErrStoreUnavailable):
		return protocol.ErrCodeStoreUnavailable
	default:
		return protocol.ErrCodeInternalError
	}
}

// handlePing answers a keep-alive ping. Liveness only, no state change.
func (h *Handlers) handlePing(client *Client, msg *protocol.Message) error {
	var payload protocol.PingPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return err
	}

	pong, err := protocol.NewMessage(protocol.TypePong, protocol.PongPayload{
		Timestamp: payload.Timestamp,
	})
	if err != nil {
		return err
	}
	pong.ID = msg.ID
	client.Send(pong)
	return nil
}

// handleRequestUpdate answers a targeted query for one territory, replying
// only to the requesting client.
func (h *Handlers) handleRequestUpdate(client *Client, msg *protocol.Message) error {
	var payload protocol.RequestUpdatePayload
	if err := msg.ParsePayload(&payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	view, err := h.hub.store.GetTerritoryView(ctx, payload.TerritoryID)
	if err != nil {
		return err
	}

	reply, err := protocol.NewMessage(protocol.TypeTerritoryUpdate, protocol.TerritoryUpdatePayload{
		Territory: toTerritoryView(*view),
	})
	if err != nil {
		return err
	}
	reply.ID = msg.ID
	client.Send(reply)
	return nil
}

// handleInfluenceAction forwards an influence action to the store. A
// controller change is broadcast immediately; this is the low-latency path,
// with the poller's cycle as the backstop for changes it misses.
func (h *Handlers) handleInfluenceAction(client *Client, msg *protocol.Message) error {
	var payload protocol.InfluenceActionPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	result, err := h.hub.store.ApplyInfluenceAction(ctx, payload.TerritoryID, payload.FactionID, payload.Delta)
	if err != nil {
		return err
	}

	h.hub.log.Debug("influence action applied",
		zap.String("territory", result.TerritoryID),
		zap.String("faction", result.FactionID),
		zap.Int("delta", payload.Delta),
		zap.Int("level", result.NewLevel),
		zap.Bool("controller_changed", result.ControllerChanged))

	if !result.ControllerChanged {
		return nil
	}

	broadcast, err := protocol.NewMessage(protocol.TerritorialType(result.EventType), protocol.TerritorialEventPayload{
		TerritoryID:    result.TerritoryID,
		TerritoryName:  result.TerritoryName,
		EventType:      result.EventType,
		FactionID:      result.FactionID,
		FactionName:    result.FactionName,
		ControllerID:   result.ControllerID,
		ControllerName: result.ControllerName,
		Contested:      result.Contested,
		Timestamp:      result.Timestamp,
	})
	if err != nil {
		return err
	}
	h.hub.Broadcast(broadcast)
	return nil
}
