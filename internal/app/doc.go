// Package app wires application dependencies for the CLI.
//
// It opens the encrypted identity store and builds the protocol services
// (internal/protocol/identity, internal/protocol/message) and relay client
// (internal/relayclient) from Config, exposing them via the Wire struct for
// commands to use.
package app
