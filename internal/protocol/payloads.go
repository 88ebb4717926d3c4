package protocol

// ==================== State Payloads ====================

// TerritoryView is the read-optimized territory state sent to clients.
type TerritoryView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"` // region, district, control_point
	StrategicValue int    `json:"strategic_value"`
	ControllerID   string `json:"controller_id,omitempty"`
	ControllerName string `json:"controller_name,omitempty"`
	Contested      bool   `json:"contested"`
}

// InitialStatePayload carries the full snapshot sent once per connection.
type InitialStatePayload struct {
	Territories []TerritoryView `json:"territories"`
}

// TerritoryUpdatePayload is the response to a targeted territory query.
type TerritoryUpdatePayload struct {
	Territory TerritoryView `json:"territory"`
}

// ==================== Territorial Event Payloads ====================

// TerritorialEventPayload is the payload for all territorial_* broadcasts.
// Consumers must treat it as a latest-wins snapshot keyed by territory ID,
// not a delta: the same change can arrive twice (direct path and poller).
type TerritorialEventPayload struct {
	TerritoryID    string `json:"territory_id"`
	TerritoryName  string `json:"territory_name"`
	EventType      string `json:"event_type"`
	FactionID      string `json:"faction_id,omitempty"`
	FactionName    string `json:"faction_name,omitempty"`
	ControllerID   string `json:"controller_id,omitempty"`
	ControllerName string `json:"controller_name,omitempty"`
	Contested      bool   `json:"contested"`
	Timestamp      int64  `json:"timestamp"`
}

// ==================== Client Request Payloads ====================

// RequestUpdatePayload asks for one territory's current view.
type RequestUpdatePayload struct {
	TerritoryID string `json:"territory_id"`
}

// InfluenceActionPayload applies an influence delta for a faction.
type InfluenceActionPayload struct {
	TerritoryID string `json:"territory_id"`
	FactionID   string `json:"faction_id"`
	Delta       int    `json:"delta"`
}

// ==================== System Payloads ====================

// PingPayload carries the sender's clock for round-trip measurement.
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PongPayload echoes the ping timestamp.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ==================== Convoy Payloads ====================

// ConvoyUpdateType identifies the kind of convoy route update.
type ConvoyUpdateType string

const (
	ConvoyRouteGenerated   ConvoyUpdateType = "generated"
	ConvoyRouteInvalidated ConvoyUpdateType = "invalidated"
	ConvoyFactionBulk      ConvoyUpdateType = "faction_bulk"
)

// ConvoyRouteUpdatePayload reports one route change from the logistics bridge.
type ConvoyRouteUpdatePayload struct {
	UpdateType ConvoyUpdateType   `json:"update_type"`
	FactionID  string             `json:"faction_id"`
	RouteID    string             `json:"route_id,omitempty"`
	Route      *ConvoyRoute       `json:"route,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Counts     *ConvoyRouteCounts `json:"counts,omitempty"` // faction_bulk only
	Metrics    ConvoyMetrics      `json:"metrics"`
}

// ConvoyRoute is route metadata carried on generated-route updates.
type ConvoyRoute struct {
	OriginID      string `json:"origin_id"`
	DestinationID string `json:"destination_id"`
	Waypoints     int    `json:"waypoints"`
}

// ConvoyRouteCounts are aggregate counts for a faction-wide bulk update.
type ConvoyRouteCounts struct {
	Generated   int `json:"generated"`
	Invalidated int `json:"invalidated"`
	Active      int `json:"active"`
}

// ConvoyMetrics is the bridge's performance bookkeeping snapshot.
type ConvoyMetrics struct {
	MessagesSent   int64   `json:"messages_sent"`
	BatchesFlushed int64   `json:"batches_flushed"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

// ConvoyRouteBatchPayload is a batch of convoy route updates flushed together.
type ConvoyRouteBatchPayload struct {
	BatchSize int                        `json:"batch_size"`
	Updates   []ConvoyRouteUpdatePayload `json:"updates"`
	Timestamp int64                      `json:"timestamp"`
}
