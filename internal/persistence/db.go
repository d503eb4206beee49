// Package persistence provides SQLite-based storage for session saves, the
// scoreboard, and per-save event dumps.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/courier-world/internal/engine"
)

// ErrNoSave means the slot holds no stored session.
var ErrNoSave = errors.New("no save in slot")

const schemaVersion = "1"

// DB wraps a SQLite connection for session persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		slot TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		sim_time REAL NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		score REAL NOT NULL,
		income REAL NOT NULL,
		reputation REAL NOT NULL,
		elapsed REAL NOT NULL,
		outcome TEXT NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot TEXT NOT NULL,
		tick INTEGER NOT NULL,
		elapsed REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC);
	CREATE INDEX IF NOT EXISTS idx_events_slot ON events(slot);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)",
		schemaVersion,
	)
	return err
}

// SaveSession stores the snapshot in the slot, replacing any previous save,
// and remembers the slot as the most recent one.
func (db *DB) SaveSession(slot string, snap engine.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO saves
		(slot, session_id, snapshot, sim_time, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		slot, snap.ID, string(body), snap.Elapsed,
	); err != nil {
		return fmt.Errorf("write save %s: %w", slot, err)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('last_slot', ?)", slot,
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("session saved", "slot", slot, "session", snap.ID, "sim_time", snap.Elapsed)
	return nil
}

// LoadSession returns the snapshot stored in the slot, or ErrNoSave.
func (db *DB) LoadSession(slot string) (engine.Snapshot, error) {
	var body string
	err := db.conn.Get(&body, "SELECT snapshot FROM saves WHERE slot = ?", slot)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, fmt.Errorf("%w: %s", ErrNoSave, slot)
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("read save %s: %w", slot, err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode save %s: %w", slot, err)
	}
	return snap, nil
}

// HasSave reports whether the slot holds a session.
func (db *DB) HasSave(slot string) (bool, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM saves WHERE slot = ?", slot); err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddScore appends a finished session's tally to the scoreboard.
func (db *DB) AddScore(s engine.Score) error {
	_, err := db.conn.Exec(`INSERT INTO scores
		(session, score, income, reputation, elapsed, outcome)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.Session, s.Score, s.Income, s.Reputation, s.Elapsed, s.Outcome,
	)
	return err
}

// TopScores returns up to n scores, best first; earlier runs win ties.
func (db *DB) TopScores(n int) ([]engine.Score, error) {
	var scores []engine.Score
	err := db.conn.Select(&scores,
		`SELECT session, score, income, reputation, elapsed, outcome
		FROM scores ORDER BY score DESC, id ASC LIMIT ?`, n)
	return scores, err
}

// SaveEvents replaces the slot's stored event dump.
func (db *DB) SaveEvents(slot string, events []engine.Event) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events WHERE slot = ?", slot); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO events
		(slot, tick, elapsed, category, description) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(slot, e.Tick, e.Elapsed, e.Category, e.Description); err != nil {
			return fmt.Errorf("insert event tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns up to limit of the slot's newest events, oldest first.
func (db *DB) RecentEvents(slot string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		`SELECT tick, elapsed, category, description
		FROM (SELECT id, tick, elapsed, category, description FROM events
			WHERE slot = ? ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC`, slot, limit)
	return events, err
}

// SetMeta stores a key-value pair.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// Meta retrieves a metadata value; empty string when unset.
func (db *DB) Meta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
