// Package relayclient provides an HTTP + WebSocket implementation of
// domain.RelayClient: registration, bundle upload/fetch, sending envelopes,
// and opening a streaming subscription against a relay core
// (internal/relay). All requests are JSON over HTTP and accept a context
// for cancellation and deadlines.
package relayclient
