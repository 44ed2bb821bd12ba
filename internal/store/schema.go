package store

// SchemaVersion is the current database schema version
const SchemaVersion = 2

const schema = `
-- Answers table: one live record per (exam_id, question_id).
-- Saving an answer for an existing key overwrites in place; the store is
-- a map, not a log.
CREATE TABLE IF NOT EXISTS answers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    exam_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '[]',
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    synced INTEGER NOT NULL DEFAULT 0,
    UNIQUE(exam_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_answers_exam ON answers(exam_id);
CREATE INDEX IF NOT EXISTS idx_answers_synced ON answers(synced);

-- Cached exam definitions for fully-offline resume
CREATE TABLE IF NOT EXISTS exams (
    exam_id TEXT PRIMARY KEY,
    payload JSON NOT NULL,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Migration represents a schema change applied to databases created before
// the current schema version.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations are applied in order to bring older databases up to date.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "add exam snapshot cache",
		SQL: `
			CREATE TABLE IF NOT EXISTS exams (
				exam_id TEXT PRIMARY KEY,
				payload JSON NOT NULL,
				timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}
