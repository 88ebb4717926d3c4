package database

import (
	"context"
	"database/sql"
	"errors"
)

// TerritoryType is the small closed hierarchy of territory kinds.
type TerritoryType string

const (
	TerritoryRegion       TerritoryType = "region"
	TerritoryDistrict     TerritoryType = "district"
	TerritoryControlPoint TerritoryType = "control_point"
)

// Territory is a single controllable zone.
type Territory struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Type           TerritoryType  `db:"type"`
	StrategicValue int            `db:"strategic_value"`
	ControllerID   sql.NullString `db:"controller_faction_id"`
	Contested      bool           `db:"contested"`
}

// TerritoryView is a territory joined with its controller's name, the read
// contract used for snapshots and targeted queries.
type TerritoryView struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Type           TerritoryType  `db:"type"`
	StrategicValue int            `db:"strategic_value"`
	ControllerID   sql.NullString `db:"controller_faction_id"`
	ControllerName sql.NullString `db:"controller_name"`
	Contested      bool           `db:"contested"`
}

// ErrTerritoryNotFound is returned when a territory is not found.
var ErrTerritoryNotFound = errors.New("territory not found")

// CreateTerritory inserts a territory. Duplicate IDs are ignored so world
// seeding stays idempotent across restarts.
func (db *DB) CreateTerritory(ctx context.Context, id, name string, ttype TerritoryType, strategicValue int) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO territories (id, name, type, strategic_value)
		VALUES (?, ?, ?, ?)
	`, id, name, ttype, strategicValue)
	if err != nil {
		return storeErr("create territory", err)
	}
	return nil
}

// GetTerritory retrieves a territory by ID.
func (db *DB) GetTerritory(ctx context.Context, id string) (*Territory, error) {
	var t Territory
	err := db.conn.GetContext(ctx, &t, `
		SELECT id, name, type, strategic_value, controller_faction_id, contested
		FROM territories WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTerritoryNotFound
	}
	if err != nil {
		return nil, storeErr("get territory", err)
	}
	return &t, nil
}

// GetTerritoryView retrieves one territory joined with its controller name.
func (db *DB) GetTerritoryView(ctx context.Context, id string) (*TerritoryView, error) {
	var v TerritoryView
	err := db.conn.GetContext(ctx, &v, `
		SELECT t.id, t.name, t.type, t.strategic_value, t.controller_faction_id,
		       f.name AS controller_name, t.contested
		FROM territories t
		LEFT JOIN factions f ON t.controller_faction_id = f.id
		WHERE t.id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTerritoryNotFound
	}
	if err != nil {
		return nil, storeErr("get territory view", err)
	}
	return &v, nil
}

// GetFullState returns every territory joined with its controller name,
// ordered for stable snapshots. Used once per new client connection.
func (db *DB) GetFullState(ctx context.Context) ([]TerritoryView, error) {
	var views []TerritoryView
	err := db.conn.SelectContext(ctx, &views, `
		SELECT t.id, t.name, t.type, t.strategic_value, t.controller_faction_id,
		       f.name AS controller_name, t.contested
		FROM territories t
		LEFT JOIN factions f ON t.controller_faction_id = f.id
		ORDER BY t.strategic_value DESC, t.name
	`)
	if err != nil {
		return nil, storeErr("get full state", err)
	}
	return views, nil
}
