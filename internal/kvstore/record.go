package kvstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ciphera/internal/crypto"
)

// Set JSON-encodes v, seals it under the store's key with key as associated
// data, and upserts it into the kv table.
func Set[T any](s *Store, key string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	sealed, err := crypto.Seal(s.key, raw, []byte(key))
	if err != nil {
		return fmt.Errorf("kvstore: seal %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO kv(key, sealed, updated_at_ms) VALUES (?, ?, 0)
		 ON CONFLICT(key) DO UPDATE SET sealed = excluded.sealed`,
		key, sealed,
	)
	if err != nil {
		return fmt.Errorf("kvstore: write %s: %w", key, err)
	}
	return nil
}

// Get loads and decodes the value stored at key. ok is false if no record
// exists for key.
func Get[T any](s *Store, key string) (v T, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sealed []byte
	err = s.db.QueryRow(`SELECT sealed FROM kv WHERE key = ?`, key).Scan(&sealed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return v, false, nil
	case err != nil:
		return v, false, fmt.Errorf("kvstore: read %s: %w", key, err)
	}

	raw, err := crypto.Open(s.key, sealed, []byte(key))
	if err != nil {
		return v, false, fmt.Errorf("kvstore: open %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return v, true, nil
}

// Delete removes the record at key, if any. Deleting a missing key is a
// no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

// ListPrefix returns every key currently stored whose key begins with
// prefix, in lexical order.
func (s *Store) ListPrefix(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT key FROM kv WHERE key GLOB ? ORDER BY key`,
		prefix+"*",
	)
	if err != nil {
		return nil, fmt.Errorf("kvstore: list prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("kvstore: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// NextCounter atomically increments and returns the named monotonic
// counter, starting at 1. Counters back the sequential IDs minted for
// one-time, signed, and KEM pre-keys.
func (s *Store) NextCounter(name string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("kvstore: begin counter %s: %w", name, err)
	}
	defer tx.Rollback()

	metaKey := "counter:" + name
	var cur int64
	err = tx.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaKey).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cur = 0
	case err != nil:
		return 0, fmt.Errorf("kvstore: read counter %s: %w", name, err)
	}

	next := cur + 1
	if _, err := tx.Exec(
		`INSERT INTO meta(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaKey, next,
	); err != nil {
		return 0, fmt.Errorf("kvstore: write counter %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("kvstore: commit counter %s: %w", name, err)
	}
	return uint32(next), nil
}
