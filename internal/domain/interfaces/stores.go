// Package interfaces declares the store/service/transport contracts shared
// between ciphera's protocol, relay, and daemon layers (spec.md §9: "express
// this as a trait / interface ... implemented by the sub-store views; the
// crypto pipeline consumes them by reference").
package interfaces

import domaintypes "ciphera/internal/domain/types"

// IdentityStore persists the local identity and pinned peer identity keys
// (trust-on-first-use cache), spec.md §3.1/§4.3.
type IdentityStore interface {
	HasIdentity() (bool, error)
	SaveIdentity(id domaintypes.Identity) error
	LoadIdentity() (domaintypes.Identity, error)

	// PinPeerIdentity records peer's identity key under trust-on-first-use.
	// replaced is true when a different key was already pinned for peer.
	PinPeerIdentity(peer domaintypes.PeerDevice, key domaintypes.X25519Public) (replaced bool, err error)
	LoadPeerIdentity(peer domaintypes.PeerDevice) (domaintypes.X25519Public, bool, error)
}

// SessionStore persists the double-ratchet session record for a peer device.
type SessionStore interface {
	SaveSession(peer domaintypes.PeerDevice, session domaintypes.Session) error
	LoadSession(peer domaintypes.PeerDevice) (domaintypes.Session, bool, error)
}

// OneTimePreKeyStore manages one-time pre-keys: minting, consumption marking,
// and the public-only listing used to build bundles.
type OneTimePreKeyStore interface {
	NextID() (domaintypes.OneTimePreKeyID, error)
	Save(rec domaintypes.OneTimePreKeyPair) error
	// Consume resolves priv/pub for id and marks it used. ok is false if id
	// is unknown. Consuming an already-used id is idempotent (spec.md §4.3).
	Consume(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	IsUsed(id domaintypes.OneTimePreKeyID) (bool, error)
	Latest() (domaintypes.OneTimePreKeyPublic, bool, error)
}

// SignedPreKeyStore manages the medium-lived signed pre-key.
type SignedPreKeyStore interface {
	NextID() (domaintypes.SignedPreKeyID, error)
	Save(rec domaintypes.SignedPreKeyRecord) error
	Load(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKeyRecord, bool, error)
	Latest() (domaintypes.SignedPreKeyRecord, bool, error)
}

// KemPreKeyStore manages the post-quantum KEM pre-key, mirroring
// SignedPreKeyStore's lifecycle.
type KemPreKeyStore interface {
	NextID() (domaintypes.KEMPreKeyID, error)
	Save(rec domaintypes.KEMPreKeyRecord) error
	Load(id domaintypes.KEMPreKeyID) (domaintypes.KEMPreKeyRecord, bool, error)
	Latest() (domaintypes.KEMPreKeyRecord, bool, error)
}
