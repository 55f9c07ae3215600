package ledger

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	levels     TEXT NOT NULL,
	backends   TEXT NOT NULL,
	model_dir  TEXT NOT NULL,
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	level      TEXT NOT NULL,
	method     TEXT NOT NULL,
	split      TEXT NOT NULL,
	avg_f1     REAL NOT NULL,
	accuracy   REAL NOT NULL,
	f1_json    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_level_method ON evaluations(level, method);
`
