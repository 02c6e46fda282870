package identity_test

import (
	"path/filepath"
	"testing"

	"ciphera/internal/kvstore"
	"ciphera/internal/protocol/identity"
	"ciphera/internal/protocol/keystore"
)

func newService(t *testing.T) *identity.Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.db")
	kv, err := kvstore.Open(path, "pass")
	if err != nil {
		t.Fatalf("open kvstore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return identity.New(keystore.New(kv))
}

func TestBootstrapTwiceFails(t *testing.T) {
	svc := newService(t)

	if _, err := svc.Bootstrap("alice", 1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := svc.Bootstrap("alice", 1); err == nil {
		t.Fatal("expected error bootstrapping twice")
	}
}

func TestExportBundleIncludesOneTimePreKey(t *testing.T) {
	svc := newService(t)
	if _, err := svc.Bootstrap("alice", 1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	bundle, err := svc.ExportBundle()
	if err != nil {
		t.Fatalf("export bundle: %v", err)
	}
	if bundle.Username != "alice" {
		t.Fatalf("got username %v, want alice", bundle.Username)
	}
	if bundle.OneTimePreKey == nil {
		t.Fatal("expected a one-time pre-key in a fresh bundle")
	}
	if bundle.SignedPreKeyID == 0 || bundle.KEMPreKeyID == 0 {
		t.Fatal("expected non-zero signed/kem pre-key ids")
	}
}

func TestSessionEstablishmentRoundTrip(t *testing.T) {
	alice := newService(t)
	bob := newService(t)

	aliceID, err := alice.Bootstrap("alice", 1)
	if err != nil {
		t.Fatalf("bootstrap alice: %v", err)
	}
	bobID, err := bob.Bootstrap("bob", 1)
	if err != nil {
		t.Fatalf("bootstrap bob: %v", err)
	}

	bundle, err := bob.ExportBundle()
	if err != nil {
		t.Fatalf("bob export bundle: %v", err)
	}

	aliceSession, pkm, replaced, err := alice.InitSessionFromBundle(aliceID, bundle)
	if err != nil {
		t.Fatalf("alice init session: %v", err)
	}
	if replaced {
		t.Fatal("first pin should not report replacement")
	}

	bobSession, replaced, err := bob.AcceptSessionFromPreKeyMessage(bobID, "alice", 1, pkm)
	if err != nil {
		t.Fatalf("bob accept session: %v", err)
	}
	if replaced {
		t.Fatal("first pin should not report replacement")
	}

	if aliceSession.Peer != "bob" || bobSession.Peer != "alice" {
		t.Fatalf("unexpected peers: alice session peer=%v, bob session peer=%v", aliceSession.Peer, bobSession.Peer)
	}
}
