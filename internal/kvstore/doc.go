// Package kvstore provides encrypted-at-rest key/value persistence for
// Ciphera's identity, prekey, and session state.
//
// Storage is a single SQLite database per profile (mattn/go-sqlite3),
// opened in WAL journaling mode for safe single-writer/concurrent-reader
// access. Two tables back every Store:
//
//   - meta: small plaintext bookkeeping (schema version, scrypt KDF
//     parameters, monotonic ID counters) that carries no secret material.
//   - kv: opaque AEAD-sealed records, keyed by an application string key.
//
// Every value written through Set is JSON-encoded, then sealed with
// AES-256-GCM under a key derived from the profile passphrase via scrypt
// (internal/crypto). The application key itself is bound in as the AEAD's
// associated data, so a sealed record swapped onto a different key is
// rejected rather than silently decrypted.
package kvstore
