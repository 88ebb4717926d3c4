package database

type migration struct {
	id   int
	name string
	sql  string
}

var migrations = []migration{
	{
		id:   1,
		name: "initial_schema",
		sql: `
			-- Factions: reference data created at world setup, never deleted
			CREATE TABLE factions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				color TEXT NOT NULL DEFAULT '',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			-- Territories: mutated only by control resolution, never deleted
			CREATE TABLE territories (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT 'region',
				strategic_value INTEGER NOT NULL DEFAULT 0,
				controller_faction_id TEXT,
				contested BOOLEAN NOT NULL DEFAULT FALSE,
				FOREIGN KEY (controller_faction_id) REFERENCES factions(id)
			);
			CREATE INDEX idx_territories_controller ON territories(controller_faction_id);

			-- Influence: created lazily on first action, rows persist at 0.
			-- Timestamps are unix milliseconds so range scans stay cheap.
			CREATE TABLE influence (
				territory_id TEXT NOT NULL,
				faction_id TEXT NOT NULL,
				level INTEGER NOT NULL DEFAULT 0,
				last_action_at INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (territory_id, faction_id),
				FOREIGN KEY (territory_id) REFERENCES territories(id),
				FOREIGN KEY (faction_id) REFERENCES factions(id)
			);
			CREATE INDEX idx_influence_territory ON influence(territory_id);

			-- Territorial events: append-only log consumed by the poller
			CREATE TABLE territorial_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				territory_id TEXT NOT NULL,
				faction_id TEXT,
				event_type TEXT NOT NULL,
				started_at INTEGER NOT NULL,
				FOREIGN KEY (territory_id) REFERENCES territories(id),
				FOREIGN KEY (faction_id) REFERENCES factions(id)
			);
			CREATE INDEX idx_events_started_at ON territorial_events(started_at);
		`,
	},
	{
		id:   2,
		name: "add_influence_trend",
		sql: `
			-- Track the last known direction of change for display purposes
			ALTER TABLE influence ADD COLUMN trend TEXT NOT NULL DEFAULT 'stable';
		`,
	},
}
