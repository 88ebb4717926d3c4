package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"warfront/internal/control"
)

// Influence trend indicators, informational only.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// Influence is one faction's presence in one territory. Rows are created
// lazily on a faction's first action and persist even when the level decays
// to zero.
type Influence struct {
	TerritoryID  string `db:"territory_id"`
	FactionID    string `db:"faction_id"`
	Level        int    `db:"level"`
	Trend        string `db:"trend"`
	LastActionAt int64  `db:"last_action_at"` // unix milliseconds
}

// ActionResult is the outcome of applying one influence action.
type ActionResult struct {
	TerritoryID       string
	TerritoryName     string
	FactionID         string
	FactionName       string
	NewLevel          int
	ControllerChanged bool
	ControllerID      string
	ControllerName    string
	Contested         bool
	EventType         string
	Timestamp         int64 // unix milliseconds
}

// GetTerritoryInfluence returns all influence rows for a territory.
func (db *DB) GetTerritoryInfluence(ctx context.Context, territoryID string) ([]Influence, error) {
	var rows []Influence
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT territory_id, faction_id, level, trend, last_action_at
		FROM influence WHERE territory_id = ?
		ORDER BY level DESC, faction_id
	`, territoryID)
	if err != nil {
		return nil, storeErr("get territory influence", err)
	}
	return rows, nil
}

// ApplyInfluenceAction is the single mutating entry point for influence
// changes. In one transaction it clamps and writes the new influence level,
// recomputes the territory's controller, and appends the corresponding event
// row, so the poller can never observe the influence write without its event.
func (db *DB) ApplyInfluenceAction(ctx context.Context, territoryID, factionID string, delta int) (*ActionResult, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin influence action", err)
	}
	defer tx.Rollback()

	var territory Territory
	err = tx.GetContext(ctx, &territory, `
		SELECT id, name, type, strategic_value, controller_faction_id, contested
		FROM territories WHERE id = ?
	`, territoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTerritoryNotFound
	}
	if err != nil {
		return nil, storeErr("load territory", err)
	}

	var faction Faction
	err = tx.GetContext(ctx, &faction, `SELECT id, name, color FROM factions WHERE id = ?`, factionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFactionNotFound
	}
	if err != nil {
		return nil, storeErr("load faction", err)
	}

	var current int
	err = tx.GetContext(ctx, &current, `
		SELECT level FROM influence WHERE territory_id = ? AND faction_id = ?
	`, territoryID, factionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("load influence", err)
	}

	newLevel := control.Clamp(current + delta)
	trend := TrendStable
	switch {
	case newLevel > current:
		trend = TrendRising
	case newLevel < current:
		trend = TrendFalling
	}

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO influence (territory_id, faction_id, level, trend, last_action_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(territory_id, faction_id) DO UPDATE SET
			level = excluded.level,
			trend = excluded.trend,
			last_action_at = excluded.last_action_at
	`, territoryID, factionID, newLevel, trend, now)
	if err != nil {
		return nil, storeErr("write influence", err)
	}

	var rows []Influence
	if err := tx.SelectContext(ctx, &rows, `
		SELECT territory_id, faction_id, level, trend, last_action_at
		FROM influence WHERE territory_id = ?
	`, territoryID); err != nil {
		return nil, storeErr("load territory influence", err)
	}

	levels := make(map[string]int, len(rows))
	for _, r := range rows {
		levels[r.FactionID] = r.Level
	}

	resolved := control.Resolve(levels, db.threshold, db.margin)

	prevController := ""
	if territory.ControllerID.Valid {
		prevController = territory.ControllerID.String
	}
	changed := resolved.Changed(prevController)

	// Event taxonomy: a controller gained is a capture, a controller lost
	// with no successor is an abandon, a contested flag rising without a
	// controller change is a contest, everything else is influence_change.
	eventType := EventInfluenceChange
	eventFaction := factionID
	switch {
	case changed && resolved.ControllerID != "":
		eventType = EventCapture
		eventFaction = resolved.ControllerID
	case changed:
		eventType = EventAbandon
		eventFaction = prevController
	case resolved.Contested && !territory.Contested:
		eventType = EventContest
	}

	controller := sql.NullString{String: resolved.ControllerID, Valid: resolved.ControllerID != ""}
	if _, err := tx.ExecContext(ctx, `
		UPDATE territories SET controller_faction_id = ?, contested = ? WHERE id = ?
	`, controller, resolved.Contested, territoryID); err != nil {
		return nil, storeErr("update territory controller", err)
	}

	if err := insertEvent(tx, territoryID, eventFaction, eventType, now); err != nil {
		return nil, storeErr("append event", err)
	}

	controllerName := ""
	if resolved.ControllerID != "" {
		if resolved.ControllerID == factionID {
			controllerName = faction.Name
		} else if err := tx.GetContext(ctx, &controllerName,
			`SELECT name FROM factions WHERE id = ?`, resolved.ControllerID); err != nil {
			return nil, storeErr("load controller name", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit influence action", err)
	}

	return &ActionResult{
		TerritoryID:       territoryID,
		TerritoryName:     territory.Name,
		FactionID:         factionID,
		FactionName:       faction.Name,
		NewLevel:          newLevel,
		ControllerChanged: changed,
		ControllerID:      resolved.ControllerID,
		ControllerName:    controllerName,
		Contested:         resolved.Contested,
		EventType:         eventType,
		Timestamp:         now,
	}, nil
}
