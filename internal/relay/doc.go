// Package relay implements the relay core: the combined request/response and
// streaming server that registers identities, stores and serves pre-key
// bundles, accepts and queues envelopes, dispatches them to an online
// recipient's streaming subscription, flushes pending deliveries on
// (re)connection, and reports diagnostics.
//
// State is persisted through internal/relaystore; the relay only ever
// handles ciphertext and routing metadata and cannot derive plaintext.
package relay
