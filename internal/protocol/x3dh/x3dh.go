// Package x3dh derives a shared root key for a new session using an
// Extended Triple Diffie-Hellman handshake extended with a post-quantum
// KEM leg (X3DH+KEM), combining the classical and PQ shared secrets into
// one HKDF so the resulting root key is only as weak as the stronger
// assumption breaking.
package x3dh

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// hkdfInfo is the domain-separation label folded into every root key
// derivation so X3DH output here can never collide with another protocol's
// use of the same DH/KEM secrets.
const hkdfInfo = "ciphera-x3dh-kem"

// InitiatorHandshake runs the initiator side of X3DH+KEM against peer's
// published bundle. It verifies the bundle's signatures, performs the DH
// and KEM legs, and returns the derived root key plus the PreKeyMessage the
// initiator must carry in its first ("initial") envelope.
func InitiatorHandshake(local domain.Identity, bundle domain.PreKeyBundle) (rootKey []byte, pkm domain.PreKeyMessage, err error) {
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySig) {
		return nil, domain.PreKeyMessage{}, fmt.Errorf("x3dh: signed pre-key signature invalid for %s", bundle.Username)
	}
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.KEMPreKey, bundle.KEMPreKeySig) {
		return nil, domain.PreKeyMessage{}, fmt.Errorf("x3dh: kem pre-key signature invalid for %s", bundle.Username)
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, domain.PreKeyMessage{}, fmt.Errorf("x3dh: generate ephemeral key: %w", err)
	}

	dh1, err := dh(local.XPriv, bundle.SignedPreKey) // DH(IKa, SPKb)
	if err != nil {
		return nil, domain.PreKeyMessage{}, err
	}
	dh2, err := dh(ephPriv, bundle.IdentityKey) // DH(Eka, IKb)
	if err != nil {
		return nil, domain.PreKeyMessage{}, err
	}
	dh3, err := dh(ephPriv, bundle.SignedPreKey) // DH(Eka, SPKb)
	if err != nil {
		return nil, domain.PreKeyMessage{}, err
	}

	secrets := make([]byte, 0, 32*4+64)
	secrets = append(secrets, dh1[:]...)
	secrets = append(secrets, dh2[:]...)
	secrets = append(secrets, dh3[:]...)

	var oneTimeID domain.OneTimePreKeyID
	if bundle.OneTimePreKey != nil {
		dh4, err := dh(ephPriv, bundle.OneTimePreKey.Pub) // DH(Eka, OPKb)
		if err != nil {
			return nil, domain.PreKeyMessage{}, err
		}
		secrets = append(secrets, dh4[:]...)
		oneTimeID = bundle.OneTimePreKey.ID
	}

	kemCiphertext, kemShared, err := crypto.KEMEncapsulate(bundle.KEMPreKey)
	if err != nil {
		return nil, domain.PreKeyMessage{}, fmt.Errorf("x3dh: kem encapsulate: %w", err)
	}
	secrets = append(secrets, kemShared...)

	root, err := deriveRootKey(secrets)
	crypto.Wipe(secrets)
	if err != nil {
		return nil, domain.PreKeyMessage{}, err
	}

	pkm = domain.PreKeyMessage{
		InitiatorIdentityKey: local.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       bundle.SignedPreKeyID,
		OneTimePreKeyID:      oneTimeID,
		KEMPreKeyID:          bundle.KEMPreKeyID,
		KEMCiphertext:        kemCiphertext,
	}
	return root, pkm, nil
}

// ResponderHandshake runs the responder side: given the local identity, the
// private halves of the signed/one-time/KEM pre-keys referenced by pm, it
// recomputes the same root key the initiator derived. opkPriv is nil when
// pm carries no one-time pre-key reference.
func ResponderHandshake(
	local domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	kemPriv domain.KEMPrivate,
	pm domain.PreKeyMessage,
) ([]byte, error) {
	dh1, err := dh(spkPriv, pm.InitiatorIdentityKey) // DH(SPKb, IKa)
	if err != nil {
		return nil, err
	}
	dh2, err := dh(local.XPriv, pm.EphemeralKey) // DH(IKb, Eka)
	if err != nil {
		return nil, err
	}
	dh3, err := dh(spkPriv, pm.EphemeralKey) // DH(SPKb, Eka)
	if err != nil {
		return nil, err
	}

	secrets := make([]byte, 0, 32*4+64)
	secrets = append(secrets, dh1[:]...)
	secrets = append(secrets, dh2[:]...)
	secrets = append(secrets, dh3[:]...)

	if opkPriv != nil {
		dh4, err := dh(*opkPriv, pm.EphemeralKey) // DH(OPKb, Eka)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, dh4[:]...)
	}

	kemShared, err := crypto.KEMDecapsulate(kemPriv, pm.KEMCiphertext)
	if err != nil {
		return nil, fmt.Errorf("x3dh: kem decapsulate: %w", err)
	}
	secrets = append(secrets, kemShared...)

	root, err := deriveRootKey(secrets)
	crypto.Wipe(secrets)
	return root, err
}

func dh(priv domain.X25519Private, pub domain.X25519Public) ([32]byte, error) {
	var out [32]byte
	res, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, fmt.Errorf("x3dh: dh: %w", err)
	}
	copy(out[:], res)
	return out, nil
}

// deriveRootKey folds the concatenated DH/KEM secrets into a single 32-byte
// root key via HKDF-SHA256, domain-separated by hkdfInfo.
func deriveRootKey(secrets []byte) ([]byte, error) {
	hk := hkdf.New(sha256.New, secrets, nil, []byte(hkdfInfo))
	root := make([]byte, 32)
	if _, err := io.ReadFull(hk, root); err != nil {
		return nil, fmt.Errorf("x3dh: derive root key: %w", err)
	}
	return root, nil
}
