package store

import "fmt"

// migrate creates all tables if they don't exist. DDL is idempotent; the
// store is safe to reopen against an existing file.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			input_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			records    INTEGER NOT NULL DEFAULT 0,
			errors     INTEGER NOT NULL DEFAULT 0,
			segments   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			run_id      TEXT NOT NULL REFERENCES runs(id),
			ts          TEXT,
			sender      TEXT NOT NULL,
			contents    TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			record      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_fingerprint ON messages(fingerprint)`,
		`CREATE TABLE IF NOT EXISTS segments (
			segment_id             TEXT NOT NULL,
			run_id                 TEXT NOT NULL REFERENCES runs(id),
			date                   TEXT NOT NULL,
			start_time             TEXT NOT NULL,
			end_time               TEXT NOT NULL,
			message_count          INTEGER NOT NULL,
			total_duration_minutes REAL NOT NULL,
			data                   TEXT NOT NULL,
			PRIMARY KEY (run_id, segment_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_segments_date ON segments(date)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			segment_id         TEXT NOT NULL,
			run_id             TEXT NOT NULL REFERENCES runs(id),
			generated_by_model INTEGER NOT NULL,
			created_at         TEXT NOT NULL,
			data               TEXT NOT NULL,
			PRIMARY KEY (run_id, segment_id)
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}
