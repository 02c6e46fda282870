package kvstore_test

import (
	"path/filepath"
	"testing"

	"ciphera/internal/kvstore"
)

func openTest(t *testing.T) *kvstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.db")
	s, err := kvstore.Open(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTest(t)

	type record struct {
		Name  string
		Count int
	}
	want := record{Name: "alice", Count: 7}

	if err := kvstore.Set(s, "rec:alice", want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := kvstore.Get[record](s, "rec:alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || got != want {
		t.Fatalf("got %+v, ok=%v, want %+v", got, ok, want)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := openTest(t)

	_, ok, err := kvstore.Get[string](s, "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing key")
	}
}

func TestDelete(t *testing.T) {
	s := openTest(t)

	if err := kvstore.Set(s, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err := kvstore.Get[string](s, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestListPrefix(t *testing.T) {
	s := openTest(t)

	for _, k := range []string{"session:alice.1", "session:bob.1", "identity:local"} {
		if err := kvstore.Set(s, k, "x"); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	got, err := s.ListPrefix("session:")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 session keys", got)
	}
}

func TestNextCounterIncrements(t *testing.T) {
	s := openTest(t)

	for i, want := range []uint32{1, 2, 3} {
		got, err := s.NextCounter("prekey")
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("iteration %d: got %d, want %d", i, got, want)
		}
	}
}

func TestWrongPassphraseRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.db")
	s, err := kvstore.Open(path, "right")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()

	if _, err := kvstore.Open(path, "wrong"); err != kvstore.ErrWrongPassphrase {
		t.Fatalf("got err %v, want ErrWrongPassphrase", err)
	}
}
