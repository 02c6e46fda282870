package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
	"ciphera/internal/protocol/identity"
	"ciphera/internal/protocol/keystore"
	"ciphera/internal/protocol/message"
)

// Handler processes one successfully decrypted, decoded inbound message.
// It is called from the daemon's dispatch loop (Run) or from RecvWindow.
type Handler func(ctx context.Context, msg domain.DecryptedMessage, app domain.AppMessage)

// Daemon is the long-running shell described in spec.md §4.7. One Daemon
// corresponds to one bootstrapped local identity.
type Daemon struct {
	cfg   Config
	log   *slog.Logger
	store *kvstore.Store
	ks    *keystore.Keystore
	idSvc *identity.Service
	msg   *message.Service
	relay domain.RelayClient

	local domain.Identity

	peerMu    sync.Mutex
	peerLocks map[domain.Username]*sync.Mutex

	promptMu sync.Mutex // serializes the chat-prompt send path across all peers (spec.md §5)
}

// Open loads or bootstraps the local identity's encrypted store, publishes
// its pre-key bundle to the relay, and returns a ready Daemon. The KDF used
// to open the store is CPU-heavy by design (spec.md §5); callers that care
// about not stalling other work should invoke Open from its own goroutine.
func Open(ctx context.Context, cfg Config, relay domain.RelayClient, log *slog.Logger) (*Daemon, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	store, err := kvstore.Open(cfg.StorePath, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}

	ks := keystore.New(store)
	idSvc := identity.New(ks)

	d := &Daemon{
		cfg:       cfg,
		log:       log,
		store:     store,
		ks:        ks,
		idSvc:     idSvc,
		msg:       message.New(ks, idSvc),
		relay:     relay,
		peerLocks: make(map[domain.Username]*sync.Mutex),
	}

	has, err := ks.Identity.HasIdentity()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("daemon: check identity: %w", err)
	}
	if has {
		d.local, err = idSvc.LoadLocal()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("daemon: load identity: %w", err)
		}
		log.Info("identity loaded", "local_id", cfg.LocalID)
	} else {
		// Bootstrap always mints identity.DefaultOneTimePreKeyBatch one-time
		// pre-keys; a larger Config.OneTimePreKeyBatch only takes effect on
		// the next Replenish, since MintPrekeys also rotates the signed and
		// KEM pre-key and calling it twice here would churn those needlessly.
		d.local, err = idSvc.Bootstrap(cfg.LocalID, message.DefaultDevice)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("daemon: bootstrap identity: %w", err)
		}
		log.Info("identity bootstrapped", "local_id", cfg.LocalID)
	}

	if err := d.publish(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return d, nil
}

// publish registers the local id with the relay (idempotent) and uploads a
// fresh pre-key bundle.
func (d *Daemon) publish(ctx context.Context) error {
	if err := d.relay.Register(ctx, d.cfg.LocalID); err != nil {
		return fmt.Errorf("daemon: register: %w", err)
	}
	bundle, err := d.idSvc.ExportBundle()
	if err != nil {
		return fmt.Errorf("daemon: export bundle: %w", err)
	}
	if err := d.relay.UploadBundle(ctx, d.cfg.LocalID, bundle); err != nil {
		return fmt.Errorf("daemon: upload bundle: %w", err)
	}
	return nil
}

// Replenish mints a fresh batch of one-time pre-keys and republishes the
// bundle. Callers invoke this periodically or when the relay reports the
// one-time pre-key is exhausted.
func (d *Daemon) Replenish(ctx context.Context) error {
	batch := d.cfg.OneTimePreKeyBatch
	if batch <= 0 {
		batch = identity.DefaultOneTimePreKeyBatch
	}
	if err := d.idSvc.MintPrekeys(batch); err != nil {
		return fmt.Errorf("daemon: mint pre-keys: %w", err)
	}
	return d.publish(ctx)
}

// Local returns the bootstrapped local identity.
func (d *Daemon) Local() domain.Identity { return d.local }

// Close closes the encrypted store. It does not close any open subscription;
// callers own the subscription's lifetime via Run's context.
func (d *Daemon) Close() error {
	return d.store.Close()
}

func (d *Daemon) lockFor(peer domain.Username) *sync.Mutex {
	d.peerMu.Lock()
	defer d.peerMu.Unlock()
	l, ok := d.peerLocks[peer]
	if !ok {
		l = &sync.Mutex{}
		d.peerLocks[peer] = l
	}
	return l
}

// ErrPeerUnknown is returned by Send when no session exists for peer and no
// bundle can be fetched from the relay to start one.
var ErrPeerUnknown = errors.New("daemon: no session and no bundle available for peer")

// ensureSession loads or establishes a session for peer under the caller's
// peer lock, fetching the peer's bundle from the relay on first contact.
func (d *Daemon) ensureSession(ctx context.Context, peer domain.Username) (*domain.PreKeyBundle, error) {
	_, ok, err := d.ks.Session.LoadSession(domain.PeerDevice{Peer: peer, Device: message.DefaultDevice})
	if err != nil {
		return nil, fmt.Errorf("daemon: load session: %w", err)
	}
	if ok {
		return nil, nil
	}
	bundle, err := d.relay.FetchBundle(ctx, peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerUnknown, err)
	}
	return &bundle, nil
}

// Send encrypts plaintext for peer and delivers it through the relay. Per
// spec.md §5 this serializes on the (local, peer) critical section: encrypt
// and decrypt for the same peer never interleave.
func (d *Daemon) Send(ctx context.Context, peer domain.Username, plaintext []byte) (queued, delivered bool, err error) {
	lock := d.lockFor(peer)
	lock.Lock()
	defer lock.Unlock()

	bundle, err := d.ensureSession(ctx, peer)
	if err != nil {
		return false, false, err
	}
	env, err := d.msg.Send(d.local, peer, plaintext, bundle)
	if err != nil {
		return false, false, fmt.Errorf("daemon: encrypt: %w", err)
	}
	queued, delivered, err = d.relay.SendMessage(ctx, d.cfg.LocalID, peer, env)
	if err != nil {
		return false, false, fmt.Errorf("daemon: send: %w", err)
	}
	return queued, delivered, nil
}

// SendChatPrompt encodes and sends a chat.prompt message. Per spec.md §5,
// the chat-prompt send path serializes across all peers behind a single
// in-memory lock, on top of the per-peer critical section Send already
// honors, to avoid cross-peer reordering of application-layer replies.
func (d *Daemon) SendChatPrompt(ctx context.Context, peer domain.Username, prompt domain.ChatPrompt) (queued, delivered bool, err error) {
	app := domain.AppMessage{Kind: domain.KindChatPrompt, Prompt: &prompt}
	plaintext, err := message.EncodeAppMessage(app)
	if err != nil {
		return false, false, fmt.Errorf("daemon: encode prompt: %w", err)
	}

	d.promptMu.Lock()
	defer d.promptMu.Unlock()
	return d.Send(ctx, peer, plaintext)
}

// deliver validates, decrypts, and decodes one inbound envelope, calling
// handler on success. Errors are logged and swallowed: a single malformed or
// undecryptable envelope must not bring down the dispatch loop.
func (d *Daemon) deliver(ctx context.Context, from, to domain.Username, env domain.Envelope, handler Handler) {
	lock := d.lockFor(from)
	lock.Lock()
	defer lock.Unlock()

	dec, err := d.msg.Receive(d.local, env)
	if err != nil {
		d.log.Warn("dropping undeliverable envelope", "from", from, "to", to, "err", err)
		return
	}
	app, err := message.DecodeAppMessage(dec.Plaintext)
	if err != nil {
		d.log.Warn("dropping undecodable message", "from", from, "err", err)
		return
	}
	handler(ctx, dec, app)
}
