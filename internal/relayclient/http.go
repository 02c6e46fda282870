package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"ciphera/internal/domain"
)

// HTTP is a domain.RelayClient over HTTP + WebSocket.
type HTTP struct {
	Base   string
	client *http.Client
}

// NewHTTP constructs a relay client against base. If client is nil,
// http.DefaultClient is used.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, client: client}
}

// Register implements domain.RelayClient.
func (c *HTTP) Register(ctx context.Context, id domain.Username) error {
	return c.post(ctx, "/v1/register", map[string]domain.Username{"id": id}, nil)
}

// UploadBundle implements domain.RelayClient.
func (c *HTTP) UploadBundle(ctx context.Context, id domain.Username, bundle domain.PreKeyBundle) error {
	payload := struct {
		ID     domain.Username     `json:"id"`
		Bundle domain.PreKeyBundle `json:"bundle"`
	}{ID: id, Bundle: bundle}
	return c.post(ctx, "/v1/prekeys", payload, nil)
}

// FetchBundle implements domain.RelayClient.
func (c *HTTP) FetchBundle(ctx context.Context, id domain.Username) (domain.PreKeyBundle, error) {
	var out struct {
		ID     domain.Username     `json:"id"`
		Bundle domain.PreKeyBundle `json:"bundle"`
	}
	if err := c.getJSON(ctx, "/v1/prekeys/"+url.PathEscape(string(id)), &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out.Bundle, nil
}

// SendMessage implements domain.RelayClient.
func (c *HTTP) SendMessage(ctx context.Context, from, to domain.Username, env domain.Envelope) (queued, delivered bool, err error) {
	payload := struct {
		From domain.Username `json:"from"`
		To   domain.Username `json:"to"`
		Env  domain.Envelope `json:"envelope"`
	}{From: from, To: to, Env: env}

	var out struct {
		OK        bool `json:"ok"`
		Queued    bool `json:"queued"`
		Delivered bool `json:"delivered"`
	}
	if err := c.post(ctx, "/v1/messages", payload, &out); err != nil {
		return false, false, err
	}
	return out.Queued, out.Delivered, nil
}

func (c *HTTP) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("relayclient: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return fmt.Errorf("relayclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("relayclient: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relayclient: post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return fmt.Errorf("relayclient: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("relayclient: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relayclient: get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that HTTP implements domain.RelayClient.
var _ domain.RelayClient = (*HTTP)(nil)
