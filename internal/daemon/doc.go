// Package daemon runs the long-running per-identity process that sits on
// top of the crypto core (internal/protocol/...) and the relay transport
// (internal/relayclient): it opens the identity's encrypted store, bootstraps
// or loads the local identity, publishes pre-key material, maintains a
// reconnecting streaming subscription, and serializes outbound encryption per
// peer so the double ratchet's critical section is never violated.
//
// A Daemon is built once per identity via Open and then driven either by Run
// (long-lived dispatch loop) or RecvWindow (bounded short-poll receive) for
// callers that cannot hold an open stream.
package daemon
