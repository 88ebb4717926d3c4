package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Event types recorded in the territorial event log.
const (
	EventCapture         = "capture"
	EventAbandon         = "abandon"
	EventContest         = "contest"
	EventInfluenceChange = "influence_change"
)

// Event is one append-only log row. Written once, read by the poller,
// never updated.
type Event struct {
	ID          int64          `db:"id"`
	TerritoryID string         `db:"territory_id"`
	FactionID   sql.NullString `db:"faction_id"`
	EventType   string         `db:"event_type"`
	StartedAt   int64          `db:"started_at"` // unix milliseconds
}

// GetEventsSince returns events newer than the given watermark, ordered by
// timestamp then ID ascending. The ID tiebreak lets a caller resume exactly
// after the last event it saw even when several events share a timestamp.
func (db *DB) GetEventsSince(ctx context.Context, sinceMillis, afterID int64) ([]Event, error) {
	var events []Event
	err := db.conn.SelectContext(ctx, &events, `
		SELECT id, territory_id, faction_id, event_type, started_at
		FROM territorial_events
		WHERE started_at > ? OR (started_at = ? AND id > ?)
		ORDER BY started_at, id
	`, sinceMillis, sinceMillis, afterID)
	if err != nil {
		return nil, storeErr("get events since", err)
	}
	return events, nil
}

// EventView is an event joined with the names and current control facts the
// hub needs to build a broadcast, so polling costs one query per cycle.
type EventView struct {
	ID             int64          `db:"id"`
	TerritoryID    string         `db:"territory_id"`
	TerritoryName  string         `db:"territory_name"`
	FactionID      sql.NullString `db:"faction_id"`
	FactionName    sql.NullString `db:"faction_name"`
	EventType      string         `db:"event_type"`
	StartedAt      int64          `db:"started_at"` // unix milliseconds
	ControllerID   sql.NullString `db:"controller_faction_id"`
	ControllerName sql.NullString `db:"controller_name"`
	Contested      bool           `db:"contested"`
}

// GetEventViewsSince is GetEventsSince joined with territory and faction
// names plus the territory's current controller.
func (db *DB) GetEventViewsSince(ctx context.Context, sinceMillis, afterID int64) ([]EventView, error) {
	var views []EventView
	err := db.conn.SelectContext(ctx, &views, `
		SELECT e.id, e.territory_id, t.name AS territory_name,
		       e.faction_id, ef.name AS faction_name,
		       e.event_type, e.started_at,
		       t.controller_faction_id, cf.name AS controller_name, t.contested
		FROM territorial_events e
		JOIN territories t ON e.territory_id = t.id
		LEFT JOIN factions ef ON e.faction_id = ef.id
		LEFT JOIN factions cf ON t.controller_faction_id = cf.id
		WHERE e.started_at > ? OR (e.started_at = ? AND e.id > ?)
		ORDER BY e.started_at, e.id
	`, sinceMillis, sinceMillis, afterID)
	if err != nil {
		return nil, storeErr("get event views since", err)
	}
	return views, nil
}

// insertEvent appends one event row inside an influence-action transaction.
func insertEvent(tx *sqlx.Tx, territoryID, factionID, eventType string, atMillis int64) error {
	faction := sql.NullString{String: factionID, Valid: factionID != ""}
	_, err := tx.Exec(`
		INSERT INTO territorial_events (territory_id, faction_id, event_type, started_at)
		VALUES (?, ?, ?, ?)
	`, territoryID, faction, eventType, atMillis)
	return err
}
