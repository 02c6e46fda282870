package relaystore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the relay's SQL-backed persistence: registered users, published
// pre-key bundles, and the queued-envelope table.
type Store struct {
	db *sql.DB
}

// QueuedMessage is one row of the messages table.
type QueuedMessage struct {
	ID           string
	To           string
	From         string
	EnvelopeJSON []byte
	CreatedAtMs  int64
	Delivered    bool
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		created_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS prekeys (
		id TEXT PRIMARY KEY,
		bundle_json TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		to_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		envelope_json TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_to_delivered ON messages(to_id, delivered)`,
}

// Open opens (creating if absent) the SQLite file at path, sets WAL
// journaling mode, and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("relaystore: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("relaystore: set WAL: %w", err)
	}
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("relaystore: migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterUser inserts id if absent. created reports whether this call
// actually inserted a new row.
func (s *Store) RegisterUser(id string, nowMs int64) (created bool, err error) {
	res, err := s.db.Exec(`INSERT INTO users (id, created_at_ms) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`, id, nowMs)
	if err != nil {
		return false, fmt.Errorf("relaystore: register user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("relaystore: register user rows affected: %w", err)
	}
	return n > 0, nil
}

// HasUser reports whether id is registered.
func (s *Store) HasUser(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("relaystore: has user: %w", err)
	}
	return true, nil
}

// UpsertBundle replaces the pre-key bundle published for id.
func (s *Store) UpsertBundle(id string, bundleJSON []byte, nowMs int64) error {
	_, err := s.db.Exec(`INSERT INTO prekeys (id, bundle_json, updated_at_ms) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET bundle_json = excluded.bundle_json, updated_at_ms = excluded.updated_at_ms`,
		id, string(bundleJSON), nowMs)
	if err != nil {
		return fmt.Errorf("relaystore: upsert bundle: %w", err)
	}
	return nil
}

// FetchBundle returns the stored bundle JSON for id, if any.
func (s *Store) FetchBundle(id string) (bundleJSON []byte, ok bool, err error) {
	var raw string
	err = s.db.QueryRow(`SELECT bundle_json FROM prekeys WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("relaystore: fetch bundle: %w", err)
	}
	return []byte(raw), true, nil
}

// EnqueueMessage inserts a new undelivered message row.
func (s *Store) EnqueueMessage(msg QueuedMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, to_id, from_id, envelope_json, created_at_ms, delivered)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		msg.ID, msg.To, msg.From, string(msg.EnvelopeJSON), msg.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("relaystore: enqueue message: %w", err)
	}
	return nil
}

// PendingForRecipient returns to's undelivered messages in created_at_ms
// ascending order.
func (s *Store) PendingForRecipient(to string) ([]QueuedMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, to_id, from_id, envelope_json, created_at_ms, delivered
		 FROM messages WHERE to_id = ? AND delivered = 0 ORDER BY created_at_ms ASC`,
		to,
	)
	if err != nil {
		return nil, fmt.Errorf("relaystore: pending for recipient: %w", err)
	}
	defer rows.Close()

	var out []QueuedMessage
	for rows.Next() {
		var m QueuedMessage
		var envelopeJSON string
		var delivered int
		if err := rows.Scan(&m.ID, &m.To, &m.From, &envelopeJSON, &m.CreatedAtMs, &delivered); err != nil {
			return nil, fmt.Errorf("relaystore: scan pending message: %w", err)
		}
		m.EnvelopeJSON = []byte(envelopeJSON)
		m.Delivered = delivered != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkDelivered flips a message row's delivered flag to true.
func (s *Store) MarkDelivered(id string) error {
	_, err := s.db.Exec(`UPDATE messages SET delivered = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("relaystore: mark delivered: %w", err)
	}
	return nil
}

// Counts returns the registered-user, published-bundle, and
// currently-queued-message totals used by the diagnostics endpoint.
func (s *Store) Counts() (users, prekeys, queuedMessages int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return 0, 0, 0, fmt.Errorf("relaystore: count users: %w", err)
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM prekeys`).Scan(&prekeys); err != nil {
		return 0, 0, 0, fmt.Errorf("relaystore: count prekeys: %w", err)
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE delivered = 0`).Scan(&queuedMessages); err != nil {
		return 0, 0, 0, fmt.Errorf("relaystore: count queued messages: %w", err)
	}
	return users, prekeys, queuedMessages, nil
}

// AllUserIDs lists every registered user id.
func (s *Store) AllUserIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("relaystore: list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("relaystore: scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UndeliveredCountsByRecipient returns, for every recipient that has at
// least one undelivered message, the number of undelivered messages queued
// for them.
func (s *Store) UndeliveredCountsByRecipient() (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT to_id, COUNT(*) FROM messages WHERE delivered = 0 GROUP BY to_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("relaystore: undelivered counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("relaystore: scan undelivered count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}
