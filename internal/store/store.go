// Package store persists user profiles and listening history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a profile does not exist.
var ErrNotFound = errors.New("profile not found")

// Mode selects how the bot reacts to free-text messages.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeAdvanced Mode = "advanced"
)

// Profile is the durable per-user state.
type Profile struct {
	UserID           int64
	Mode             Mode
	InteractionCount int
	Preferences      string
}

// ShouldShowPromotion reports whether the promo cadence fires for this
// profile: every 10th inbound message, never on the first contact.
func (p Profile) ShouldShowPromotion() bool {
	return p.InteractionCount > 0 && p.InteractionCount%10 == 0
}

// HistoryEntry records one successfully delivered track.
type HistoryEntry struct {
	UserID    int64
	TrackName string
	Artist    string
	Timestamp time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open connects to the database at path and runs the schema migration.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id           INTEGER PRIMARY KEY,
			mode              TEXT    NOT NULL DEFAULT 'basic',
			interaction_count INTEGER NOT NULL DEFAULT 0,
			preferences       TEXT    NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(user_id),
			track_name TEXT    NOT NULL,
			artist     TEXT    NOT NULL,
			timestamp  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// GetProfile loads a profile, returning ErrNotFound when absent.
func (s *Store) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, mode, interaction_count, preferences FROM users WHERE user_id = ?`, userID)

	var p Profile
	if err := row.Scan(&p.UserID, &p.Mode, &p.InteractionCount, &p.Preferences); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	return p, nil
}

// EnsureProfile lazily creates a default profile; an existing one is untouched.
func (s *Store) EnsureProfile(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

// SetMode updates the mode, creating the profile if it does not exist yet.
func (s *Store) SetMode(ctx context.Context, userID int64, mode Mode) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, mode) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET mode = excluded.mode`,
		userID, mode); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

// RecordInteraction increments the interaction counter, creating the profile
// on first contact, and returns the post-increment profile. The upsert is a
// single statement, so same-user calls cannot race against each other.
func (s *Store) RecordInteraction(ctx context.Context, userID int64) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id, interaction_count) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET interaction_count = users.interaction_count + 1
		RETURNING user_id, mode, interaction_count, preferences`,
		userID)

	var p Profile
	if err := row.Scan(&p.UserID, &p.Mode, &p.InteractionCount, &p.Preferences); err != nil {
		return Profile{}, fmt.Errorf("record interaction: %w", err)
	}

	return p, nil
}

// AppendHistory inserts one history entry stamped with the current time.
func (s *Store) AppendHistory(ctx context.Context, userID int64, trackName, artist string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO history (user_id, track_name, artist) VALUES (?, ?, ?)`,
		userID, trackName, artist); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit entries, most recent first. The id column
// breaks ties between entries created within the same second.
func (s *Store) RecentHistory(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, track_name, artist, timestamp
		FROM history
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.UserID, &e.TrackName, &e.Artist, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}
