package message_test

import (
	"path/filepath"
	"testing"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
	"ciphera/internal/protocol/identity"
	"ciphera/internal/protocol/keystore"
	"ciphera/internal/protocol/message"
)

type harness struct {
	id  *identity.Service
	msg *message.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.db")
	kv, err := kvstore.Open(path, "pass")
	if err != nil {
		t.Fatalf("open kvstore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	ks := keystore.New(kv)
	idSvc := identity.New(ks)
	return &harness{id: idSvc, msg: message.New(ks, idSvc)}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	alice := newHarness(t)
	bob := newHarness(t)

	aliceID, err := alice.id.Bootstrap("alice", message.DefaultDevice)
	if err != nil {
		t.Fatalf("bootstrap alice: %v", err)
	}
	bobID, err := bob.id.Bootstrap("bob", message.DefaultDevice)
	if err != nil {
		t.Fatalf("bootstrap bob: %v", err)
	}

	bobBundle, err := bob.id.ExportBundle()
	if err != nil {
		t.Fatalf("bob export bundle: %v", err)
	}

	plaintext, err := message.EncodeAppMessage(domain.AppMessage{
		Kind:   domain.KindChatPrompt,
		Prompt: &domain.ChatPrompt{RequestID: "r1", Prompt: "hi bob", From: "alice", CreatedAt: 1},
	})
	if err != nil {
		t.Fatalf("encode app message: %v", err)
	}

	env1, err := alice.msg.Send(aliceID, "bob", plaintext, &bobBundle)
	if err != nil {
		t.Fatalf("alice send: %v", err)
	}
	if env1.Type != domain.EnvelopeInitial {
		t.Fatalf("got envelope type %v, want initial", env1.Type)
	}
	if env1.PreKey == nil {
		t.Fatal("expected initial envelope to carry a pre-key message")
	}

	if err := message.ValidateEnvelope(env1); err != nil {
		t.Fatalf("validate envelope: %v", err)
	}

	dm1, err := bob.msg.Receive(bobID, env1)
	if err != nil {
		t.Fatalf("bob receive: %v", err)
	}
	got, err := message.DecodeAppMessage(dm1.Plaintext)
	if err != nil {
		t.Fatalf("decode app message: %v", err)
	}
	if got.Prompt == nil || got.Prompt.Prompt != "hi bob" {
		t.Fatalf("unexpected decoded prompt: %+v", got)
	}

	// A second send from alice to bob should now be a subsequent envelope
	// with no pre-key message attached.
	plaintext2, err := message.EncodeAppMessage(domain.AppMessage{
		Kind: domain.KindControlPing,
		Ping: &domain.ControlPing{CreatedAt: 2},
	})
	if err != nil {
		t.Fatalf("encode app message 2: %v", err)
	}
	env2, err := alice.msg.Send(aliceID, "bob", plaintext2, nil)
	if err != nil {
		t.Fatalf("alice send 2: %v", err)
	}
	if env2.Type != domain.EnvelopeSubsequent || env2.PreKey != nil {
		t.Fatalf("expected subsequent envelope with no pre-key, got type=%v prekey=%v", env2.Type, env2.PreKey)
	}

	if _, err := bob.msg.Receive(bobID, env2); err != nil {
		t.Fatalf("bob receive 2: %v", err)
	}
}

func TestReceiveSubsequentWithoutSessionFails(t *testing.T) {
	bob := newHarness(t)
	bobID, err := bob.id.Bootstrap("bob", message.DefaultDevice)
	if err != nil {
		t.Fatalf("bootstrap bob: %v", err)
	}

	env := domain.Envelope{
		Version:     domain.EnvelopeVersion,
		Sender:      "alice",
		Recipient:   "bob",
		SessionID:   "alice::bob",
		Type:        domain.EnvelopeSubsequent,
		Body:        "aGVsbG8=",
		TimestampMs: 1,
	}
	if _, err := bob.msg.Receive(bobID, env); err == nil {
		t.Fatal("expected error receiving subsequent envelope with no established session")
	}
}

func TestSendWithoutSessionOrBundleFails(t *testing.T) {
	alice := newHarness(t)
	aliceID, err := alice.id.Bootstrap("alice", message.DefaultDevice)
	if err != nil {
		t.Fatalf("bootstrap alice: %v", err)
	}
	if _, err := alice.msg.Send(aliceID, "bob", []byte("hi"), nil); err == nil {
		t.Fatal("expected error sending with no session and no bundle")
	}
}

func TestValidateEnvelopeRejectsBadSessionID(t *testing.T) {
	env := domain.Envelope{
		Version:     domain.EnvelopeVersion,
		Sender:      "alice",
		Recipient:   "bob",
		SessionID:   "wrong",
		Type:        domain.EnvelopeSubsequent,
		Body:        "aGVsbG8=",
		TimestampMs: 1,
	}
	if err := message.ValidateEnvelope(env); err == nil {
		t.Fatal("expected error for mismatched session id")
	}
}
