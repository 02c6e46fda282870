// Package types defines the plain data types shared across ciphera's
// identity store, protocol pipeline, relay, and transport layers.
package types

import "fmt"

// Username names a relay-registered identity.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Device is a per-identity device number. Version 1 only ever uses device 1.
type Device uint32

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key within one store.
type SignedPreKeyID uint32

// OneTimePreKeyID uniquely identifies a one-time pre-key within one store.
type OneTimePreKeyID uint32

// KEMPreKeyID uniquely identifies a post-quantum KEM pre-key within one store.
type KEMPreKeyID uint32

// PeerDevice identifies one (peer, device) pair for session/identity lookups.
type PeerDevice struct {
	Peer   Username
	Device Device
}

// String renders the peer.device form used in store key layouts (e.g. "alice.1").
func (p PeerDevice) String() string {
	return fmt.Sprintf("%s.%d", p.Peer, p.Device)
}
