package kvstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"ciphera/internal/crypto"
)

// ErrWrongPassphrase is returned by Open when the supplied passphrase
// cannot derive the key that previously sealed this store's canary record.
var ErrWrongPassphrase = errors.New("kvstore: wrong passphrase or corrupted store")

// schemaVersion is the current on-disk schema. Open refuses to touch a
// database stamped with a newer version than this binary understands.
const schemaVersion = 1

const metaKDFParams = "kdf_params"
const metaSchemaVersion = "schema_version"
const metaCanary = "canary"

// Store is a single encrypted SQLite-backed key/value database. All
// exported methods are safe for concurrent use.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	key []byte
}

// Open opens (creating if necessary) the SQLite database at path, deriving
// the sealing key from passphrase. On first open it mints fresh KDF
// parameters and writes an encrypted canary record; on subsequent opens it
// re-derives the key from the stored parameters and verifies the canary,
// returning ErrWrongPassphrase on mismatch.
func Open(path, passphrase string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initKey(passphrase); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key           TEXT PRIMARY KEY,
			sealed        BLOB NOT NULL,
			updated_at_ms INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("kvstore: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) initKey(passphrase string) error {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaKDFParams).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.bootstrapKey(passphrase)
	case err != nil:
		return fmt.Errorf("kvstore: read kdf params: %w", err)
	}

	var rawVersion string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaSchemaVersion).Scan(&rawVersion); err == nil {
		var version int
		if _, err := fmt.Sscan(rawVersion, &version); err == nil && version > schemaVersion {
			return fmt.Errorf("kvstore: schema version %d is newer than supported %d", version, schemaVersion)
		}
	}

	var params crypto.KDFParams
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return fmt.Errorf("kvstore: decode kdf params: %w", err)
	}
	key, err := crypto.Derive(passphrase, params)
	if err != nil {
		return err
	}

	var sealedCanary []byte
	if err := s.db.QueryRow(`SELECT sealed FROM kv WHERE key = ?`, metaCanary).Scan(&sealedCanary); err != nil {
		return fmt.Errorf("kvstore: read canary: %w", err)
	}
	if _, err := crypto.Open(key, sealedCanary, []byte(metaCanary)); err != nil {
		return ErrWrongPassphrase
	}

	s.key = key
	return nil
}

func (s *Store) bootstrapKey(passphrase string) error {
	params, err := crypto.DefaultKDFParams()
	if err != nil {
		return err
	}
	key, err := crypto.Derive(passphrase, params)
	if err != nil {
		return err
	}
	encodedParams, err := json.Marshal(params)
	if err != nil {
		return err
	}
	sealedCanary, err := crypto.Seal(key, []byte("ciphera"), []byte(metaCanary))
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("kvstore: begin bootstrap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES (?, ?)`, metaKDFParams, string(encodedParams)); err != nil {
		return fmt.Errorf("kvstore: write kdf params: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES (?, ?)`, metaSchemaVersion, fmt.Sprint(schemaVersion)); err != nil {
		return fmt.Errorf("kvstore: write schema version: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO kv(key, sealed, updated_at_ms) VALUES (?, ?, 0)`, metaCanary, sealedCanary); err != nil {
		return fmt.Errorf("kvstore: write canary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kvstore: commit bootstrap: %w", err)
	}

	s.key = key
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
