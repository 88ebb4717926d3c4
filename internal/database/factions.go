package database

import (
	"context"
	"database/sql"
	"errors"
)

// Faction is immutable reference data created at world-setup time.
type Faction struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Color string `db:"color"`
}

// ErrFactionNotFound is returned when a faction is not found.
var ErrFactionNotFound = errors.New("faction not found")

// CreateFaction inserts a faction. Duplicate IDs are ignored so world
// seeding stays idempotent across restarts.
func (db *DB) CreateFaction(ctx context.Context, id, name, color string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO factions (id, name, color) VALUES (?, ?, ?)
	`, id, name, color)
	if err != nil {
		return storeErr("create faction", err)
	}
	return nil
}

// GetFaction retrieves a faction by ID.
func (db *DB) GetFaction(ctx context.Context, id string) (*Faction, error) {
	var f Faction
	err := db.conn.GetContext(ctx, &f, `
		SELECT id, name, color FROM factions WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFactionNotFound
	}
	if err != nil {
		return nil, storeErr("get faction", err)
	}
	return &f, nil
}

// ListFactions returns all factions ordered by name.
func (db *DB) ListFactions(ctx context.Context) ([]Faction, error) {
	var factions []Faction
	err := db.conn.SelectContext(ctx, &factions, `
		SELECT id, name, color FROM factions ORDER BY name
	`)
	if err != nil {
		return nil, storeErr("list factions", err)
	}
	return factions, nil
}
