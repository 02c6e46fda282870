package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ciphera/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscription is one identity's live streaming delivery channel, backed by
// a single websocket connection. At most one exists per identity at a time
// (invariant I8).
type subscription struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// deliveryFrame is the JSON shape pushed over the wire for each delivery:
// `{from, to, envelope}`, matching the shape a polling endpoint would return.
type deliveryFrame struct {
	From domain.Username `json:"from"`
	To   domain.Username `json:"to"`
	Env  domain.Envelope `json:"envelope"`
}

func (sub *subscription) send(frame deliveryFrame) error {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeTO))
	return sub.conn.WriteJSON(frame)
}

func (sub *subscription) closeWithReason(code int, reason string) {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()
	data := websocket.FormatCloseMessage(code, reason)
	_ = sub.conn.WriteControl(websocket.CloseMessage, data, time.Now().Add(time.Second))
	_ = sub.conn.Close()
}

// handleWS implements the streaming subscription: GET /ws?client_id=....
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := domain.Username(r.URL.Query().Get("client_id"))
	if clientID == "" {
		writeErr(w, http.StatusBadRequest, "client_id required")
		return
	}
	registered, err := s.store.HasUser(string(clientID))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !registered {
		writeErr(w, http.StatusUnauthorized, "client not registered")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.enableLogging {
			slog.Error("ws upgrade failed", "client_id", clientID, "err", err)
		}
		return
	}
	// This connection is now hijacked from net/http's timeout machinery;
	// the subscription owns its own deadlines from here on.
	conn.SetReadDeadline(time.Time{})

	sub := &subscription{conn: conn}
	s.displace(clientID, sub)
	defer s.releaseIfCurrent(clientID, sub)

	s.flushPending(clientID, sub)

	// Read loop: the relay never expects client-to-server application
	// frames, but it must keep reading to observe close/error so the
	// subscription entry is promptly released.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// displace installs sub as the subscription for id, first closing and
// evicting any prior subscription with close code 4000/"superseded"
// (invariant I8: exclusive streaming subscription).
func (s *Server) displace(id domain.Username, sub *subscription) {
	s.mu.Lock()
	prev, had := s.subs[id]
	s.subs[id] = sub
	s.mu.Unlock()

	if had {
		prev.closeWithReason(4000, "superseded")
	}
}

// releaseIfCurrent removes id's subscription entry, but only if it is still
// sub — a displaced subscription must not clobber whatever replaced it.
func (s *Server) releaseIfCurrent(id domain.Username, sub *subscription) {
	s.mu.Lock()
	if s.subs[id] == sub {
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

// flushPending pushes id's undelivered messages in created_at_ms ascending
// order; a failed push stops the flush, leaving the remainder queued.
func (s *Server) flushPending(id domain.Username, sub *subscription) {
	pending, err := s.store.PendingForRecipient(string(id))
	if err != nil {
		if s.enableLogging {
			slog.Error("flush pending: list failed", "client_id", id, "err", err)
		}
		return
	}
	for _, msg := range pending {
		var env domain.Envelope
		if err := json.Unmarshal(msg.EnvelopeJSON, &env); err != nil {
			if s.enableLogging {
				slog.Error("flush pending: bad envelope json", "msg_id", msg.ID, "err", err)
			}
			return
		}
		if err := sub.send(deliveryFrame{From: domain.Username(msg.From), To: domain.Username(msg.To), Env: env}); err != nil {
			return
		}
		if err := s.store.MarkDelivered(msg.ID); err != nil {
			if s.enableLogging {
				slog.Error("flush pending: mark delivered failed", "msg_id", msg.ID, "err", err)
			}
			return
		}
	}
}

// pushToSubscriber attempts an immediate push to to's live subscription, if
// any. It reports whether the push succeeded.
func (s *Server) pushToSubscriber(to, from domain.Username, env domain.Envelope) bool {
	s.mu.Lock()
	sub, ok := s.subs[to]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return sub.send(deliveryFrame{From: from, To: to, Env: env}) == nil
}
