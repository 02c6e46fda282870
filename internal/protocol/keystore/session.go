package keystore

import (
	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
)

// SessionStore persists the double-ratchet session record for a peer device.
type SessionStore struct {
	kv *kvstore.Store
}

var _ domain.SessionStore = (*SessionStore)(nil)

// SaveSession persists the session for peer, overwriting any prior record.
func (s *SessionStore) SaveSession(peer domain.PeerDevice, session domain.Session) error {
	return kvstore.Set(s.kv, peerKey(keySession, peer), session)
}

// LoadSession loads the session for peer, if one has been established.
func (s *SessionStore) LoadSession(peer domain.PeerDevice) (domain.Session, bool, error) {
	return kvstore.Get[domain.Session](s.kv, peerKey(keySession, peer))
}
