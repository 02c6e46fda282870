// Package relaystore is the relay's own SQL-backed persistence: registered
// users, published pre-key bundles, and the queued-envelope table the relay
// flushes on (re)connection. It is independent of any identity's encrypted
// store in internal/kvstore — the relay never holds a passphrase and never
// decrypts anything it stores.
package relaystore
