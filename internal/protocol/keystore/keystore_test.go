package keystore_test

import (
	"path/filepath"
	"testing"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
	"ciphera/internal/protocol/keystore"
)

func openTest(t *testing.T) *keystore.Keystore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.db")
	kv, err := kvstore.Open(path, "pass")
	if err != nil {
		t.Fatalf("open kvstore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return keystore.New(kv)
}

func TestIdentitySaveLoad(t *testing.T) {
	ks := openTest(t)

	has, err := ks.Identity.HasIdentity()
	if err != nil {
		t.Fatalf("has identity: %v", err)
	}
	if has {
		t.Fatal("expected no identity yet")
	}

	id := domain.Identity{Name: "alice", Device: 1, RegistrationID: 42}
	if err := ks.Identity.SaveIdentity(id); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := ks.Identity.LoadIdentity()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != id.Name || got.RegistrationID != id.RegistrationID {
		t.Fatalf("got %+v, want %+v", got, id)
	}
}

func TestPinPeerIdentityDetectsReplacement(t *testing.T) {
	ks := openTest(t)
	peer := domain.PeerDevice{Peer: "bob", Device: 1}

	var key1, key2 domain.X25519Public
	key1[0] = 1
	key2[0] = 2

	replaced, err := ks.Identity.PinPeerIdentity(peer, key1)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if replaced {
		t.Fatal("first pin should not report replacement")
	}

	replaced, err = ks.Identity.PinPeerIdentity(peer, key1)
	if err != nil {
		t.Fatalf("re-pin same key: %v", err)
	}
	if replaced {
		t.Fatal("re-pinning the same key should not report replacement")
	}

	replaced, err = ks.Identity.PinPeerIdentity(peer, key2)
	if err != nil {
		t.Fatalf("pin new key: %v", err)
	}
	if !replaced {
		t.Fatal("pinning a different key should report replacement")
	}

	got, ok, err := ks.Identity.LoadPeerIdentity(peer)
	if err != nil || !ok {
		t.Fatalf("load peer identity: ok=%v err=%v", ok, err)
	}
	if got != key2 {
		t.Fatalf("got %v, want %v", got, key2)
	}
}

func TestOneTimePreKeyLifecycle(t *testing.T) {
	ks := openTest(t)

	id, err := ks.OneTime.NextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	pair := domain.OneTimePreKeyPair{ID: id, Pub: domain.X25519Public{9}}
	if err := ks.OneTime.Save(pair); err != nil {
		t.Fatalf("save: %v", err)
	}

	used, err := ks.OneTime.IsUsed(id)
	if err != nil || used {
		t.Fatalf("expected unused, got used=%v err=%v", used, err)
	}

	got, ok, err := ks.OneTime.Consume(id)
	if err != nil || !ok {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}
	if got.Pub != pair.Pub {
		t.Fatalf("got %+v, want %+v", got, pair)
	}

	used, err = ks.OneTime.IsUsed(id)
	if err != nil || !used {
		t.Fatalf("expected used after consume, got used=%v err=%v", used, err)
	}

	// Consuming again is idempotent, not an error.
	if _, ok, err := ks.OneTime.Consume(id); err != nil || !ok {
		t.Fatalf("re-consume: ok=%v err=%v", ok, err)
	}

	latest, ok, err := ks.OneTime.Latest()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != id {
		t.Fatalf("got latest id %v, want %v", latest.ID, id)
	}
}

func TestSignedPreKeyRotation(t *testing.T) {
	ks := openTest(t)

	id1, _ := ks.SignedPre.NextID()
	if err := ks.SignedPre.Save(domain.SignedPreKeyRecord{ID: id1, CreatedAtMs: 1}); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	id2, _ := ks.SignedPre.NextID()
	if err := ks.SignedPre.Save(domain.SignedPreKeyRecord{ID: id2, CreatedAtMs: 2}); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	latest, ok, err := ks.SignedPre.Latest()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != id2 {
		t.Fatalf("got latest %v, want %v", latest.ID, id2)
	}

	old, ok, err := ks.SignedPre.Load(id1)
	if err != nil || !ok {
		t.Fatalf("load old: ok=%v err=%v", ok, err)
	}
	if old.CreatedAtMs != 1 {
		t.Fatalf("got %+v", old)
	}
}
