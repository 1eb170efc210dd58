// Package storage archives pipeline output artifacts: produced minutes and,
// when summarization fails, the rendered transcript. The rolling audio window
// itself is never persisted.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcript"
)

// ErrNotArchived is returned when no artifact exists for the session.
var ErrNotArchived = errors.New("no archived artifact for session")

// ArchivedTranscript is a fallback transcript saved because summarization
// failed, retrievable so no work is lost from the caller's perspective.
type ArchivedTranscript struct {
	SessionID    string    `json:"session_id"`
	SavedAt      time.Time `json:"saved_at"`
	Note         string    `json:"note"`
	Body         string    `json:"body"`
	SegmentCount int       `json:"segment_count"`
	GapCount     int       `json:"gap_count"`
	Segments     string    `json:"-"`
}

// SQLiteArchive stores artifacts in a single sqlite database file.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (and initializes) the archive database.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "vc-minutes.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	archive := &SQLiteArchive{db: db}
	if err := archive.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

func (a *SQLiteArchive) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := a.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS minutes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			window_start TEXT NOT NULL,
			window_end TEXT NOT NULL,
			body TEXT NOT NULL,
			segment_count INTEGER NOT NULL,
			stages INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create minutes table: %w", err)
	}

	if _, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS fallback_transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			note TEXT NOT NULL,
			body TEXT NOT NULL,
			segment_count INTEGER NOT NULL,
			gap_count INTEGER NOT NULL,
			segments_json TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create fallback_transcripts table: %w", err)
	}

	if _, err := a.db.Exec("CREATE INDEX IF NOT EXISTS idx_minutes_session ON minutes(session_id, generated_at)"); err != nil {
		return fmt.Errorf("create minutes index: %w", err)
	}
	if _, err := a.db.Exec("CREATE INDEX IF NOT EXISTS idx_fallback_session ON fallback_transcripts(session_id, saved_at)"); err != nil {
		return fmt.Errorf("create fallback index: %w", err)
	}
	return nil
}

// SaveMinutes archives one produced minutes record.
func (a *SQLiteArchive) SaveMinutes(m summary.Minutes) error {
	_, err := a.db.Exec(`
		INSERT INTO minutes (session_id, generated_at, window_start, window_end, body, segment_count, stages)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID,
		m.GeneratedAt.UTC().Format(time.RFC3339Nano),
		m.WindowStart.UTC().Format(time.RFC3339Nano),
		m.WindowEnd.UTC().Format(time.RFC3339Nano),
		m.Body,
		m.SegmentCount,
		m.Stages,
	)
	if err != nil {
		return fmt.Errorf("insert minutes: %w", err)
	}
	return nil
}

// SaveTranscript archives a rendered transcript as a fallback artifact.
func (a *SQLiteArchive) SaveTranscript(tr transcript.Transcript, note string) error {
	segmentsJSON, err := json.Marshal(tr.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}

	_, err = a.db.Exec(`
		INSERT INTO fallback_transcripts (session_id, saved_at, note, body, segment_count, gap_count, segments_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.SessionID,
		time.Now().UTC().Format(time.RFC3339Nano),
		note,
		tr.Render(),
		len(tr.Segments),
		len(tr.Gaps),
		string(segmentsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert fallback transcript: %w", err)
	}
	return nil
}

// MinutesBySession returns all archived minutes for a session, newest first.
func (a *SQLiteArchive) MinutesBySession(sessionID string) ([]summary.Minutes, error) {
	rows, err := a.db.Query(`
		SELECT session_id, generated_at, window_start, window_end, body, segment_count, stages
		FROM minutes WHERE session_id = ? ORDER BY generated_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query minutes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []summary.Minutes
	for rows.Next() {
		var m summary.Minutes
		var generatedAt, windowStart, windowEnd string
		if err := rows.Scan(&m.SessionID, &generatedAt, &windowStart, &windowEnd, &m.Body, &m.SegmentCount, &m.Stages); err != nil {
			return nil, fmt.Errorf("scan minutes: %w", err)
		}
		m.GeneratedAt, _ = time.Parse(time.RFC3339Nano, generatedAt)
		m.WindowStart, _ = time.Parse(time.RFC3339Nano, windowStart)
		m.WindowEnd, _ = time.Parse(time.RFC3339Nano, windowEnd)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestTranscript returns the most recent fallback transcript for a session.
func (a *SQLiteArchive) LatestTranscript(sessionID string) (ArchivedTranscript, error) {
	row := a.db.QueryRow(`
		SELECT session_id, saved_at, note, body, segment_count, gap_count, segments_json
		FROM fallback_transcripts WHERE session_id = ? ORDER BY saved_at DESC LIMIT 1`, sessionID)

	var tr ArchivedTranscript
	var savedAt string
	err := row.Scan(&tr.SessionID, &savedAt, &tr.Note, &tr.Body, &tr.SegmentCount, &tr.GapCount, &tr.Segments)
	if errors.Is(err, sql.ErrNoRows) {
		return ArchivedTranscript{}, fmt.Errorf("%w: %s", ErrNotArchived, sessionID)
	}
	if err != nil {
		return ArchivedTranscript{}, fmt.Errorf("scan fallback transcript: %w", err)
	}
	tr.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return tr, nil
}

// Close releases the database handle.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
