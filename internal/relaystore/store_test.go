package relaystore_test

import (
	"path/filepath"
	"testing"

	"ciphera/internal/relaystore"
)

func openTest(t *testing.T) *relaystore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.db")
	s, err := relaystore.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	s := openTest(t)

	created, err := s.RegisterUser("alice", 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !created {
		t.Fatal("expected first registration to report created")
	}

	created, err = s.RegisterUser("alice", 2)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if created {
		t.Fatal("expected second registration to be a no-op")
	}

	ok, err := s.HasUser("alice")
	if err != nil || !ok {
		t.Fatalf("has user: ok=%v err=%v", ok, err)
	}
}

func TestBundleUpsertAndFetch(t *testing.T) {
	s := openTest(t)
	if _, err := s.RegisterUser("bob", 1); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.UpsertBundle("bob", []byte(`{"v":1}`), 10); err != nil {
		t.Fatalf("upsert bundle: %v", err)
	}
	got, ok, err := s.FetchBundle("bob")
	if err != nil || !ok {
		t.Fatalf("fetch bundle: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"v":1}` {
		t.Fatalf("got %q, want %q", got, `{"v":1}`)
	}

	if err := s.UpsertBundle("bob", []byte(`{"v":2}`), 20); err != nil {
		t.Fatalf("upsert bundle update: %v", err)
	}
	got, _, _ = s.FetchBundle("bob")
	if string(got) != `{"v":2}` {
		t.Fatalf("got %q after update, want %q", got, `{"v":2}`)
	}

	if _, ok, err := s.FetchBundle("nobody"); err != nil || ok {
		t.Fatalf("expected absent bundle: ok=%v err=%v", ok, err)
	}
}

func TestEnqueueFlushOrderingAndDelivery(t *testing.T) {
	s := openTest(t)
	for i, id := range []string{"m1", "m2", "m3"} {
		err := s.EnqueueMessage(relaystore.QueuedMessage{
			ID: id, To: "alice", From: "bob",
			EnvelopeJSON: []byte(`{}`), CreatedAtMs: int64(100 + i),
		})
		if err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	pending, err := s.PendingForRecipient("alice")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	for i, id := range []string{"m1", "m2", "m3"} {
		if pending[i].ID != id {
			t.Fatalf("pending[%d].ID = %q, want %q", i, pending[i].ID, id)
		}
	}

	if err := s.MarkDelivered("m1"); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	pending, err = s.PendingForRecipient("alice")
	if err != nil {
		t.Fatalf("pending after delivery: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending after delivery, want 2", len(pending))
	}

	_, _, queued, err := s.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if queued != 2 {
		t.Fatalf("got %d queued, want 2", queued)
	}
}

func TestUndeliveredCountsByRecipient(t *testing.T) {
	s := openTest(t)
	if err := s.EnqueueMessage(relaystore.QueuedMessage{ID: "m1", To: "alice", From: "bob", EnvelopeJSON: []byte(`{}`), CreatedAtMs: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.EnqueueMessage(relaystore.QueuedMessage{ID: "m2", To: "alice", From: "bob", EnvelopeJSON: []byte(`{}`), CreatedAtMs: 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.EnqueueMessage(relaystore.QueuedMessage{ID: "m3", To: "carol", From: "bob", EnvelopeJSON: []byte(`{}`), CreatedAtMs: 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	counts, err := s.UndeliveredCountsByRecipient()
	if err != nil {
		t.Fatalf("undelivered counts: %v", err)
	}
	if counts["alice"] != 2 || counts["carol"] != 1 {
		t.Fatalf("got %+v, want alice=2 carol=1", counts)
	}
}
