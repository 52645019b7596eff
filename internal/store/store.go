// Package store provides SQLite persistence for pipeline output.
//
// One database file holds everything a run produces: normalized messages,
// conversation segments, generated summaries, and per-run tallies. The
// pipeline's JSONL outputs stand alone; the store additionally powers the
// stats command and the MCP query surface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jbellard/chatseg/internal/normalize"
	"github.com/jbellard/chatseg/internal/segment"
	"github.com/jbellard/chatseg/internal/summarize"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.chatseg/chatseg.db"

// Run records one pipeline invocation.
type Run struct {
	ID        string
	InputPath string
	StartedAt time.Time
	Records   int
	Errors    int
	Segments  int
}

// Stats holds observability counts over the whole store.
type Stats struct {
	RunCount     int64 `json:"run_count"`
	MessageCount int64 `json:"message_count"`
	SegmentCount int64 `json:"segment_count"`
	SummaryCount int64 `json:"summary_count"`
	DBSizeBytes  int64 `json:"db_size_bytes"`
}

// Config holds configuration for Open.
type Config struct {
	DBPath string
}

// Store is the persistence interface the pipeline and MCP server depend on.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	AddMessages(ctx context.Context, runID string, records []*normalize.Record) (int, error)
	AddSegments(ctx context.Context, runID string, segments []*segment.Segment) error
	AddSummary(ctx context.Context, runID string, sum *summarize.Summary) error

	SearchMessages(ctx context.Context, query string, limit int) ([]*normalize.Record, error)
	GetSegment(ctx context.Context, segmentID string) (*segment.Segment, error)
	ListSegments(ctx context.Context, date string, limit int) ([]*segment.Segment, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Open creates a SQLite-backed Store. Pass ":memory:" for tests.
func Open(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun upserts a run row; Records/Errors/Segments may be updated as the
// run progresses.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, started_at, records, errors, segments)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			records = excluded.records,
			errors = excluded.errors,
			segments = excluded.segments`,
		run.ID, run.InputPath, run.StartedAt.UTC().Format(time.RFC3339),
		run.Records, run.Errors, run.Segments)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// AddMessages inserts normalized records, skipping ids already present.
// Returns the number of newly inserted rows.
func (s *SQLiteStore) AddMessages(ctx context.Context, runID string, records []*normalize.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages (id, run_id, ts, sender, contents, fingerprint, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return inserted, fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
		res, err := stmt.ExecContext(ctx, rec.ID, runID, rec.Timestamp,
			rec.Sender.Identity(), rec.Contents, rec.Fingerprint, string(data))
		if err != nil {
			return inserted, fmt.Errorf("inserting record %s: %w", rec.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing messages: %w", err)
	}
	return inserted, nil
}

// AddSegments inserts segments for a run. Re-inserting the same
// (run, segment) pair replaces the stored row.
func (s *SQLiteStore) AddSegments(ctx context.Context, runID string, segments []*segment.Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO segments
			(segment_id, run_id, date, start_time, end_time, message_count, total_duration_minutes, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		data, err := json.Marshal(seg)
		if err != nil {
			return fmt.Errorf("encoding segment %s: %w", seg.SegmentID, err)
		}
		if _, err := stmt.ExecContext(ctx, seg.SegmentID, runID, seg.Date,
			seg.StartTime, seg.EndTime, seg.MessageCount, seg.TotalDurationMinutes, string(data)); err != nil {
			return fmt.Errorf("inserting segment %s: %w", seg.SegmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing segments: %w", err)
	}
	return nil
}

// AddSummary stores one generated segment summary.
func (s *SQLiteStore) AddSummary(ctx context.Context, runID string, sum *summarize.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encoding summary for %s: %w", sum.SegmentID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO summaries (segment_id, run_id, generated_by_model, created_at, data)
		VALUES (?, ?, ?, ?, ?)`,
		sum.SegmentID, runID, sum.GeneratedByModel, time.Now().UTC().Format(time.RFC3339), string(data))
	if err != nil {
		return fmt.Errorf("inserting summary for %s: %w", sum.SegmentID, err)
	}
	return nil
}

// SearchMessages returns messages whose contents match the query substring,
// newest first.
func (s *SQLiteStore) SearchMessages(ctx context.Context, query string, limit int) ([]*normalize.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM messages
		WHERE contents LIKE '%' || ? || '%'
		ORDER BY ts DESC LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer rows.Close()

	var out []*normalize.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		rec := &normalize.Record{}
		if err := json.Unmarshal([]byte(data), rec); err != nil {
			return nil, fmt.Errorf("decoding stored record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSegment loads one segment by id. Returns sql.ErrNoRows if absent.
func (s *SQLiteStore) GetSegment(ctx context.Context, segmentID string) (*segment.Segment, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM segments WHERE segment_id = ? ORDER BY run_id DESC LIMIT 1`,
		segmentID).Scan(&data)
	if err != nil {
		return nil, err
	}
	seg := &segment.Segment{}
	if err := json.Unmarshal([]byte(data), seg); err != nil {
		return nil, fmt.Errorf("decoding stored segment %s: %w", segmentID, err)
	}
	return seg, nil
}

// ListSegments returns stored segments, optionally filtered by date
// (YYYY-MM-DD), ordered by start time.
func (s *SQLiteStore) ListSegments(ctx context.Context, date string, limit int) ([]*segment.Segment, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT data FROM segments`
	args := []any{}
	if date != "" {
		q += ` WHERE date = ?`
		args = append(args, date)
	}
	q += ` ORDER BY start_time LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	defer rows.Close()

	var out []*segment.Segment
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning segment row: %w", err)
		}
		seg := &segment.Segment{}
		if err := json.Unmarshal([]byte(data), seg); err != nil {
			return nil, fmt.Errorf("decoding stored segment: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Stats reports row counts and database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM runs", &st.RunCount},
		{"SELECT COUNT(*) FROM messages", &st.MessageCount},
		{"SELECT COUNT(*) FROM segments", &st.SegmentCount},
		{"SELECT COUNT(*) FROM summaries", &st.SummaryCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}
	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}
	return st, nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
