// Package keystore implements the typed store interfaces declared in
// internal/domain/interfaces as thin views over a single shared
// internal/kvstore.Store handle. Each sub-store owns a distinct key
// namespace so identities, sessions, and the three pre-key kinds never
// collide, but they share one encrypted SQLite database and one sealing
// key per profile.
package keystore

import (
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
)

const (
	keyIdentityLocal = "identity:local"
	keyIdentityPeer  = "identity:peer:"
	keySession       = "session:"
	keyOneTime       = "prekey:onetime:"
	keyOneTimeLatest = "prekey:onetime:latest"
	keySigned        = "prekey:signed:"
	keySignedLatest  = "prekey:signed:latest"
	keyKEM           = "prekey:kem:"
	keyKEMLatest     = "prekey:kem:latest"

	counterOneTime = "prekey"
	counterSigned  = "signedprekey"
	counterKEM     = "kyberprekey"
)

// Keystore bundles every typed sub-store view over one kvstore.Store. Each
// field independently satisfies its corresponding interface in
// internal/domain/interfaces.
type Keystore struct {
	Identity   *IdentityStore
	Session    *SessionStore
	OneTime    *OneTimePreKeyStore
	SignedPre  *SignedPreKeyStore
	KemPre     *KemPreKeyStore
}

// New wraps kv with all five sub-store views.
func New(kv *kvstore.Store) *Keystore {
	return &Keystore{
		Identity:  &IdentityStore{kv: kv},
		Session:   &SessionStore{kv: kv},
		OneTime:   &OneTimePreKeyStore{kv: kv},
		SignedPre: &SignedPreKeyStore{kv: kv},
		KemPre:    &KemPreKeyStore{kv: kv},
	}
}

func peerKey(prefix string, peer domain.PeerDevice) string {
	return fmt.Sprintf("%s%s", prefix, peer.String())
}
