package x3dh_test

import (
	"bytes"
	"testing"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/x3dh"
)

func makeIdentity(t *testing.T, name domain.Username) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{Name: name, Device: 1, XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

type bobPrekeys struct {
	bundle  domain.PreKeyBundle
	spkPriv domain.X25519Private
	opkPriv domain.X25519Private
	kemPriv domain.KEMPrivate
}

func makeBobBundle(t *testing.T, bob domain.Identity, withOPK bool) bobPrekeys {
	t.Helper()

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519 (spk): %v", err)
	}
	spkSig := crypto.SignEd25519(bob.EdPriv, spkPub.Slice())

	kemPriv, kemPub, err := crypto.GenerateKEM()
	if err != nil {
		t.Fatalf("GenerateKEM: %v", err)
	}
	kemSig := crypto.SignEd25519(bob.EdPriv, kemPub)

	bundle := domain.PreKeyBundle{
		Username:        bob.Name,
		Device:          bob.Device,
		IdentityKey:     bob.XPub,
		SigningKey:      bob.EdPub,
		SignedPreKeyID:  1,
		SignedPreKey:    spkPub,
		SignedPreKeySig: spkSig,
		KEMPreKeyID:     1,
		KEMPreKey:       kemPub,
		KEMPreKeySig:    kemSig,
	}

	out := bobPrekeys{bundle: bundle, spkPriv: spkPriv, kemPriv: kemPriv}

	if withOPK {
		opkPriv, opkPub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519 (opk): %v", err)
		}
		out.opkPriv = opkPriv
		out.bundle.OneTimePreKey = &domain.OneTimePreKeyPublic{ID: 1, Pub: opkPub}
	}

	return out
}

func TestHandshakeRootKeysMatch_NoOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t, "alice")
	bob := makeIdentity(t, "bob")
	pk := makeBobBundle(t, bob, false)

	rootA, pkm, err := x3dh.InitiatorHandshake(alice, pk.bundle)
	if err != nil {
		t.Fatalf("InitiatorHandshake: %v", err)
	}
	if pkm.OneTimePreKeyID != 0 {
		t.Fatalf("expected no one-time pre-key reference, got %v", pkm.OneTimePreKeyID)
	}

	rootB, err := x3dh.ResponderHandshake(bob, pk.spkPriv, nil, pk.kemPriv, pkm)
	if err != nil {
		t.Fatalf("ResponderHandshake: %v", err)
	}

	if !bytes.Equal(rootA, rootB) {
		t.Fatal("root keys differ without one-time pre-key")
	}
}

func TestHandshakeRootKeysMatch_WithOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t, "alice")
	bob := makeIdentity(t, "bob")
	pk := makeBobBundle(t, bob, true)

	rootA, pkm, err := x3dh.InitiatorHandshake(alice, pk.bundle)
	if err != nil {
		t.Fatalf("InitiatorHandshake: %v", err)
	}
	if pkm.OneTimePreKeyID != pk.bundle.OneTimePreKey.ID {
		t.Fatalf("got one-time id %v, want %v", pkm.OneTimePreKeyID, pk.bundle.OneTimePreKey.ID)
	}

	rootB, err := x3dh.ResponderHandshake(bob, pk.spkPriv, &pk.opkPriv, pk.kemPriv, pkm)
	if err != nil {
		t.Fatalf("ResponderHandshake: %v", err)
	}

	if !bytes.Equal(rootA, rootB) {
		t.Fatal("root keys differ with one-time pre-key")
	}
}

func TestHandshakeRejectsBadSignedPreKeySignature(t *testing.T) {
	alice := makeIdentity(t, "alice")
	bob := makeIdentity(t, "bob")
	pk := makeBobBundle(t, bob, false)
	pk.bundle.SignedPreKeySig = append([]byte(nil), pk.bundle.SignedPreKeySig...)
	pk.bundle.SignedPreKeySig[0] ^= 0xFF

	if _, _, err := x3dh.InitiatorHandshake(alice, pk.bundle); err == nil {
		t.Fatal("expected error for tampered signed pre-key signature")
	}
}
