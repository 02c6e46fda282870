package keystore

import (
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
)

// IdentityStore persists the local identity and trust-on-first-use pins for
// peer identity keys.
type IdentityStore struct {
	kv *kvstore.Store
}

var _ domain.IdentityStore = (*IdentityStore)(nil)

// HasIdentity reports whether a local identity has already been bootstrapped.
func (s *IdentityStore) HasIdentity() (bool, error) {
	_, ok, err := kvstore.Get[domain.Identity](s.kv, keyIdentityLocal)
	return ok, err
}

// SaveIdentity persists the local identity. Callers are expected to check
// HasIdentity first; SaveIdentity itself simply overwrites.
func (s *IdentityStore) SaveIdentity(id domain.Identity) error {
	return kvstore.Set(s.kv, keyIdentityLocal, id)
}

// LoadIdentity loads the local identity.
func (s *IdentityStore) LoadIdentity() (domain.Identity, error) {
	id, ok, err := kvstore.Get[domain.Identity](s.kv, keyIdentityLocal)
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, fmt.Errorf("keystore: no local identity bootstrapped")
	}
	return id, nil
}

// PinPeerIdentity records peer's X25519 identity key under trust-on-first-use.
// replaced is true when a different key was already pinned for peer, which
// callers surface as an identity-changed warning rather than a hard error.
func (s *IdentityStore) PinPeerIdentity(peer domain.PeerDevice, key domain.X25519Public) (bool, error) {
	k := peerKey(keyIdentityPeer, peer)
	existing, ok, err := kvstore.Get[domain.X25519Public](s.kv, k)
	if err != nil {
		return false, err
	}
	if ok && existing != key {
		if err := kvstore.Set(s.kv, k, key); err != nil {
			return false, err
		}
		return true, nil
	}
	if !ok {
		if err := kvstore.Set(s.kv, k, key); err != nil {
			return false, err
		}
	}
	return false, nil
}

// LoadPeerIdentity returns the pinned identity key for peer, if any.
func (s *IdentityStore) LoadPeerIdentity(peer domain.PeerDevice) (domain.X25519Public, bool, error) {
	return kvstore.Get[domain.X25519Public](s.kv, peerKey(keyIdentityPeer, peer))
}
