// Package world loads world definitions used to seed the territorial store.
package world

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"warfront/internal/database"
)

// Definition describes the factions and territories of one zone, created at
// world-setup time. Both are reference data: never deleted during a session.
type Definition struct {
	Name        string      `json:"name"`
	Factions    []Faction   `json:"factions"`
	Territories []Territory `json:"territories"`
}

// Faction is a faction entry in a world definition.
type Faction struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Territory is a territory entry in a world definition.
type Territory struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	StrategicValue int    `json:"strategic_value"`
}

// Load reads and validates a world definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	return LoadFromJSON(data)
}

// LoadFromJSON parses a world definition from JSON bytes.
func LoadFromJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse world JSON: %w", err)
	}
	if err := validate(&def); err != nil {
		return nil, fmt.Errorf("invalid world: %w", err)
	}
	return &def, nil
}

// validate checks a definition for errors.
func validate(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("world name is required")
	}
	if len(def.Territories) == 0 {
		return fmt.Errorf("world has no territories")
	}
	seen := make(map[string]bool)
	for _, f := range def.Factions {
		if f.ID == "" || f.Name == "" {
			return fmt.Errorf("faction entries require id and name")
		}
		if seen["f:"+f.ID] {
			return fmt.Errorf("duplicate faction ID %q", f.ID)
		}
		seen["f:"+f.ID] = true
	}
	for _, t := range def.Territories {
		if t.ID == "" || t.Name == "" {
			return fmt.Errorf("territory entries require id and name")
		}
		if seen["t:"+t.ID] {
			return fmt.Errorf("duplicate territory ID %q", t.ID)
		}
		seen["t:"+t.ID] = true
	}
	return nil
}

// Seed writes the definition into the store. Inserts are idempotent, so
// seeding an already-populated database is safe across restarts.
func (def *Definition) Seed(ctx context.Context, db *database.DB) error {
	for _, f := range def.Factions {
		if err := db.CreateFaction(ctx, f.ID, f.Name, f.Color); err != nil {
			return fmt.Errorf("seed faction %s: %w", f.ID, err)
		}
	}
	for _, t := range def.Territories {
		ttype := database.TerritoryType(t.Type)
		if ttype == "" {
			ttype = database.TerritoryRegion
		}
		if err := db.CreateTerritory(ctx, t.ID, t.Name, ttype, t.StrategicValue); err != nil {
			return fmt.Errorf("seed territory %s: %w", t.ID, err)
		}
	}
	return nil
}
