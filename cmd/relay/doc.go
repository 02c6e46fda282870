// Package main runs the Ciphera relay: a SQLite-backed store-and-forward
// server for published prekey bundles and encrypted envelopes, with a
// websocket stream for recipients that are online.
//
// HTTP API
//
//	POST /v1/register { "id": ... }
//	    Register an identity; registering an existing id is a no-op.
//
//	POST /v1/prekeys { "id": ..., "bundle": {...} }
//	    Store (replace) the bundle of a registered identity; 404 otherwise.
//
//	GET /v1/prekeys/{id}
//	    Return the stored bundle for {id}; 404 if there is none.
//
//	POST /v1/messages { "from": ..., "to": ..., "envelope": {...} }
//	    Validate and queue an envelope for a registered recipient and push it
//	    at once if the recipient is subscribed. Replies {ok, queued, delivered}.
//
//	GET /ws?client_id={id}
//	    Open the streaming subscription of a registered identity. Queued
//	    envelopes are flushed oldest first. A newer subscription for the same
//	    id closes the older one with close code 4000 ("superseded").
//
//	GET /diagnostics, POST /diagnostics/metrics, GET /health
//	    Counters, uptime and queue-depth histogram; host-metrics sink; liveness.
//
// Behaviour
//
//   - State is kept in the SQLite file named by --db (default relay.db).
//   - Responses are JSON; errors carry {"error": "..."}. /health answers with
//     plain "ok".
//   - With --log, an access log records method, path, remote, status, bytes,
//     duration and request id for each request.
//   - The default listen address is :8080 (--port).
//
// AS of now, this relay is intended for local use or as an untrusted middleman
// on a private network. It never sees plaintext or private keys; it only stores
// ciphertext and public bundles.
package main
