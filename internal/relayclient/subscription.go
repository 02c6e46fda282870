package relayclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"ciphera/internal/domain"
)

// deliveryFrame mirrors the wire shape the relay pushes over /ws:
// `{from, to, envelope}`.
type deliveryFrame struct {
	From domain.Username `json:"from"`
	To   domain.Username `json:"to"`
	Env  domain.Envelope `json:"envelope"`
}

// Subscribe implements domain.RelayClient: it opens a streaming
// subscription for clientID against the relay's /ws endpoint.
func (c *HTTP) Subscribe(ctx context.Context, clientID domain.Username) (domain.Subscription, error) {
	wsURL, err := toWebSocketURL(c.Base, clientID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("relayclient: subscribe dial: %w", err)
	}
	return &wsSubscription{conn: conn}, nil
}

func toWebSocketURL(base string, clientID domain.Username) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("relayclient: bad base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("relayclient: unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("client_id", string(clientID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// wsSubscription implements domain.Subscription over a single websocket
// connection opened by Subscribe.
type wsSubscription struct {
	conn *websocket.Conn
}

// Recv implements domain.Subscription. It blocks until the next delivered
// envelope, ctx cancellation, or the connection closing.
func (s *wsSubscription) Recv(ctx context.Context) (from, to domain.Username, env domain.Envelope, err error) {
	type result struct {
		frame deliveryFrame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		var frame deliveryFrame
		readErr := s.conn.ReadJSON(&frame)
		ch <- result{frame: frame, err: readErr}
	}()

	select {
	case <-ctx.Done():
		_ = s.conn.Close()
		return "", "", domain.Envelope{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", "", domain.Envelope{}, fmt.Errorf("relayclient: subscription closed: %w", res.err)
		}
		return res.frame.From, res.frame.To, res.frame.Env, nil
	}
}

// Close implements domain.Subscription.
func (s *wsSubscription) Close() error {
	return s.conn.Close()
}

// Compile-time assertion that wsSubscription implements domain.Subscription.
var _ domain.Subscription = (*wsSubscription)(nil)
