package relay_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ciphera/internal/domain"
	"ciphera/internal/relay"
	"ciphera/internal/relaystore"
)

func newTestServer(t *testing.T) (*relay.Server, *httptest.Server) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.db")
	store, err := relaystore.Open(path)
	if err != nil {
		t.Fatalf("open relaystore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := relay.New(store, false)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestRegisterUploadFetchBundle(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, "POST", ts.URL+"/v1/register", map[string]string{"id": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	resp.Body.Close()

	bundle := domain.PreKeyBundle{Username: "alice", Device: 1}
	resp = doJSON(t, "POST", ts.URL+"/v1/prekeys", map[string]any{"id": "alice", "bundle": bundle})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload bundle status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/v1/prekeys/alice")
	if err != nil {
		t.Fatalf("fetch bundle: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch bundle status %d", resp.StatusCode)
	}
	var got struct {
		ID     domain.Username     `json:"id"`
		Bundle domain.PreKeyBundle `json:"bundle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Bundle.Username != "alice" {
		t.Fatalf("got username %v, want alice", got.Bundle.Username)
	}
}

func TestUploadBundleRequiresRegisteredUser(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, "POST", ts.URL+"/v1/prekeys", map[string]any{"id": "ghost", "bundle": domain.PreKeyBundle{}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", resp.StatusCode)
	}
}

func TestSendMessageQueuesWhenRecipientOffline(t *testing.T) {
	_, ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/v1/register", map[string]string{"id": "alice"}).Body.Close()
	doJSON(t, "POST", ts.URL+"/v1/register", map[string]string{"id": "bob"}).Body.Close()

	env := domain.Envelope{
		Version: domain.EnvelopeVersion, Sender: "bob", Recipient: "alice",
		SessionID: "bob::alice", Type: domain.EnvelopeSubsequent,
		Body: "aGVsbG8=", TimestampMs: time.Now().UnixMilli(),
	}
	resp := doJSON(t, "POST", ts.URL+"/v1/messages", map[string]any{"from": "bob", "to": "alice", "envelope": env})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send status %d", resp.StatusCode)
	}
	var got struct {
		OK        bool `json:"ok"`
		Queued    bool `json:"queued"`
		Delivered bool `json:"delivered"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Queued || got.Delivered {
		t.Fatalf("got %+v, want queued=true delivered=false", got)
	}
}

func TestSendMessageRejectsUnregisteredRecipient(t *testing.T) {
	_, ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/v1/register", map[string]string{"id": "bob"}).Body.Close()

	env := domain.Envelope{
		Version: domain.EnvelopeVersion, Sender: "bob", Recipient: "ghost",
		SessionID: "bob::ghost", Type: domain.EnvelopeSubsequent,
		Body: "aGVsbG8=", TimestampMs: time.Now().UnixMilli(),
	}
	resp := doJSON(t, "POST", ts.URL+"/v1/messages", map[string]any{"from": "bob", "to": "ghost", "envelope": env})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", resp.StatusCode)
	}
}

func TestWSFlushesPendingOnSubscribe(t *testing.T) {
	_, ts := newTestServer(t)
	doJSON(t, "POST", ts.URL+"/v1/register", map[string]string{"id": "alice"}).Body.Close()
	doJSON(t, "POST", ts.URL+"/v1/register", map[string]string{"id": "bob"}).Body.Close()

	env := domain.Envelope{
		Version: domain.EnvelopeVersion, Sender: "bob", Recipient: "alice",
		SessionID: "bob::alice", Type: domain.EnvelopeSubsequent,
		Body: "aGVsbG8=", TimestampMs: time.Now().UnixMilli(),
	}
	doJSON(t, "POST", ts.URL+"/v1/messages", map[string]any{"from": "bob", "to": "alice", "envelope": env}).Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?client_id=alice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame struct {
		From domain.Username `json:"from"`
		To   domain.Username `json:"to"`
		Env  domain.Envelope `json:"envelope"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read pending delivery: %v", err)
	}
	if frame.From != "bob" || frame.To != "alice" {
		t.Fatalf("got frame %+v, want from=bob to=alice", frame)
	}
}

func TestWSRejectsUnregisteredClient(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?client_id=ghost"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unregistered client")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("got status %d, want 401", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
}
