package daemon

import (
	"context"
	"time"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/message"
)

// DefaultRecvWindow is the short-poll receive window spec.md §4.7.6 suggests
// for callers that cannot hold a long-lived stream.
const DefaultRecvWindow = 900 * time.Millisecond

// Received pairs a decrypted message with its decoded application payload.
type Received struct {
	Msg domain.DecryptedMessage
	App domain.AppMessage
}

// RecvWindow opens a subscription, collects decoded messages matching match
// for window (DefaultRecvWindow if zero), closes the subscription, and
// returns what it collected. It does not reconnect on subscription error:
// a closed-before-window stream simply ends the collection early.
func (d *Daemon) RecvWindow(ctx context.Context, window time.Duration, match func(domain.DecryptedMessage, domain.AppMessage) bool) ([]Received, error) {
	if window <= 0 {
		window = DefaultRecvWindow
	}

	sub, err := d.relay.Subscribe(ctx, d.cfg.LocalID)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	deadline, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var out []Received
	for {
		from, to, env, err := sub.Recv(deadline)
		if err != nil {
			return out, nil
		}

		lock := d.lockFor(from)
		lock.Lock()
		dec, decErr := d.msg.Receive(d.local, env)
		lock.Unlock()
		if decErr != nil {
			d.log.Warn("RecvWindow: dropping undeliverable envelope", "from", from, "to", to, "err", decErr)
			continue
		}
		app, decErr := message.DecodeAppMessage(dec.Plaintext)
		if decErr != nil {
			d.log.Warn("RecvWindow: dropping undecodable message", "from", from, "err", decErr)
			continue
		}
		if match == nil || match(dec, app) {
			out = append(out, Received{Msg: dec, App: app})
		}
	}
}
