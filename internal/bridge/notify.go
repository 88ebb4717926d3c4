package bridge

import (
	"warfront/internal/protocol"
)

// The notify methods are the narrow API the logistics subsystem calls to
// report its own route changes upstream. All three funnel into the same
// batching buffer, so a burst of route churn reaches the hub as a handful
// of batch messages instead of a flood.

// NotifyRouteGenerated reports a single newly generated route.
func (b *Bridge) NotifyRouteGenerated(factionID, routeID string, route protocol.ConvoyRoute) {
	b.enqueueRoute(protocol.ConvoyRouteUpdatePayload{
		UpdateType: protocol.ConvoyRouteGenerated,
		FactionID:  factionID,
		RouteID:    routeID,
		Route:      &route,
		Metrics:    b.Stats(),
	})
}

// NotifyRouteInvalidated reports a single route that is no longer usable.
func (b *Bridge) NotifyRouteInvalidated(factionID, routeID, reason string) {
	b.enqueueRoute(protocol.ConvoyRouteUpdatePayload{
		UpdateType: protocol.ConvoyRouteInvalidated,
		FactionID:  factionID,
		RouteID:    routeID,
		Reason:     reason,
		Metrics:    b.Stats(),
	})
}

// NotifyFactionRoutesUpdated reports a faction-wide bulk route update.
// Only aggregate counts travel upstream.
func (b *Bridge) NotifyFactionRoutesUpdated(factionID string, counts protocol.ConvoyRouteCounts) {
	b.enqueueRoute(protocol.ConvoyRouteUpdatePayload{
		UpdateType: protocol.ConvoyFactionBulk,
		FactionID:  factionID,
		Counts:     &counts,
		Metrics:    b.Stats(),
	})
}

func (b *Bridge) enqueueRoute(update protocol.ConvoyRouteUpdatePayload) {
	b.mu.Lock()
	b.pendingRoutes = append(b.pendingRoutes, update)
	full := len(b.pendingRoutes) >= b.cfg.BatchSize
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}
