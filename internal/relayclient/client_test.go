package relayclient_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"ciphera/internal/domain"
	"ciphera/internal/relay"
	"ciphera/internal/relayclient"
	"ciphera/internal/relaystore"
)

func newTestRelay(t *testing.T) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.db")
	store, err := relaystore.Open(path)
	if err != nil {
		t.Fatalf("open relaystore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ts := httptest.NewServer(relay.New(store, false).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientRegisterUploadFetchSend(t *testing.T) {
	ts := newTestRelay(t)
	ctx := context.Background()

	alice := relayclient.NewHTTP(ts.URL, nil)
	bob := relayclient.NewHTTP(ts.URL, nil)

	if err := alice.Register(ctx, "alice"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := bob.Register(ctx, "bob"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	bundle := domain.PreKeyBundle{Username: "alice", Device: 1}
	if err := alice.UploadBundle(ctx, "alice", bundle); err != nil {
		t.Fatalf("upload bundle: %v", err)
	}

	got, err := bob.FetchBundle(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch bundle: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("got username %v, want alice", got.Username)
	}

	env := domain.Envelope{
		Version: domain.EnvelopeVersion, Sender: "bob", Recipient: "alice",
		SessionID: "bob::alice", Type: domain.EnvelopeSubsequent,
		Body: "aGVsbG8=", TimestampMs: time.Now().UnixMilli(),
	}
	queued, delivered, err := bob.SendMessage(ctx, "bob", "alice", env)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !queued || delivered {
		t.Fatalf("got queued=%v delivered=%v, want queued=true delivered=false", queued, delivered)
	}
}

func TestClientSubscribeReceivesPushedMessage(t *testing.T) {
	ts := newTestRelay(t)
	ctx := context.Background()

	alice := relayclient.NewHTTP(ts.URL, nil)
	bob := relayclient.NewHTTP(ts.URL, nil)
	if err := alice.Register(ctx, "alice"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := bob.Register(ctx, "bob"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	subCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sub, err := alice.Subscribe(subCtx, "alice")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	env := domain.Envelope{
		Version: domain.EnvelopeVersion, Sender: "bob", Recipient: "alice",
		SessionID: "bob::alice", Type: domain.EnvelopeSubsequent,
		Body: "aGVsbG8=", TimestampMs: time.Now().UnixMilli(),
	}
	queued, delivered, err := bob.SendMessage(ctx, "bob", "alice", env)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !queued || !delivered {
		t.Fatalf("got queued=%v delivered=%v, want both true (subscriber online)", queued, delivered)
	}

	from, to, gotEnv, err := sub.Recv(subCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if from != "bob" || to != "alice" || gotEnv.SessionID != "bob::alice" {
		t.Fatalf("got from=%v to=%v session=%v", from, to, gotEnv.SessionID)
	}
}
