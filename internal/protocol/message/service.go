package message

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/identity"
	"ciphera/internal/protocol/keystore"
	"ciphera/internal/protocol/ratchet"
)

// DefaultDevice is the only device number version 1 ever addresses.
const DefaultDevice domain.Device = 1

var (
	// ErrNoSession is returned when Receive sees a subsequent envelope for a
	// peer it has no session with — the initial envelope was never processed.
	ErrNoSession = errors.New("message: no session with peer")

	// ErrSessionSetupFailed wraps an X3DH+KEM handshake failure on either side.
	ErrSessionSetupFailed = errors.New("message: session setup failed")

	// ErrIntegrityFailed wraps a ratchet AEAD failure: tampered ciphertext,
	// wrong key, or a header that no longer matches the session state.
	ErrIntegrityFailed = errors.New("message: integrity check failed")
)

// Service runs the encrypt/decrypt pipeline over a Keystore and an identity
// Service, producing and consuming wire Envelopes.
type Service struct {
	ks    *keystore.Keystore
	idSvc *identity.Service
}

// New returns a Service backed by ks and idSvc.
func New(ks *keystore.Keystore, idSvc *identity.Service) *Service {
	return &Service{ks: ks, idSvc: idSvc}
}

// Send encrypts plaintext for (to, DefaultDevice) and returns the Envelope
// ready to hand to a relay client. bundle is only consulted, and only
// required, when no session with the peer exists yet; it is ignored once a
// session is already established.
func (s *Service) Send(local domain.Identity, to domain.Username, plaintext []byte, bundle *domain.PreKeyBundle) (domain.Envelope, error) {
	peer := domain.PeerDevice{Peer: to, Device: DefaultDevice}

	session, ok, err := s.ks.Session.LoadSession(peer)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("message: load session: %w", err)
	}

	var pkm *domain.PreKeyMessage
	if !ok {
		if bundle == nil {
			return domain.Envelope{}, fmt.Errorf("%w: no pre-key bundle available to start a session with %s", ErrSessionSetupFailed, to)
		}
		newSession, m, _, err := s.idSvc.InitSessionFromBundle(local, *bundle)
		if err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: %v", ErrSessionSetupFailed, err)
		}
		session, pkm = newSession, &m
	}

	header, ct, err := ratchet.Encrypt(&session.Ratchet, associatedData(local.Name, to), plaintext)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %v", ErrIntegrityFailed, err)
	}

	// Persist the advanced ratchet state before handing the envelope back to
	// the caller, so a crash between here and the relay send never leaves a
	// reused message key on disk.
	if err := s.ks.Session.SaveSession(peer, session); err != nil {
		return domain.Envelope{}, fmt.Errorf("message: save session: %w", err)
	}

	envType := domain.EnvelopeSubsequent
	if pkm != nil {
		envType = domain.EnvelopeInitial
	}

	return domain.Envelope{
		Version:     domain.EnvelopeVersion,
		Sender:      local.Name,
		Recipient:   to,
		SessionID:   sessionID(local.Name, to),
		Type:        envType,
		Body:        base64.StdEncoding.EncodeToString(ct),
		TimestampMs: time.Now().UnixMilli(),
		Header:      header,
		PreKey:      pkm,
	}, nil
}

// Receive validates env, decrypts it against the session with env.Sender —
// bootstrapping one from env.PreKey if this is the first envelope seen from
// that peer — and returns the recovered plaintext.
func (s *Service) Receive(local domain.Identity, env domain.Envelope) (domain.DecryptedMessage, error) {
	if err := ValidateEnvelope(env); err != nil {
		return domain.DecryptedMessage{}, err
	}
	if env.Recipient != local.Name {
		return domain.DecryptedMessage{}, fmt.Errorf("message: envelope addressed to %q, not %q", env.Recipient, local.Name)
	}

	peer := domain.PeerDevice{Peer: env.Sender, Device: DefaultDevice}
	session, ok, err := s.ks.Session.LoadSession(peer)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("message: load session: %w", err)
	}

	if !ok {
		if env.Type != domain.EnvelopeInitial || env.PreKey == nil {
			return domain.DecryptedMessage{}, fmt.Errorf("%w: %s", ErrNoSession, env.Sender)
		}
		newSession, _, err := s.idSvc.AcceptSessionFromPreKeyMessage(local, env.Sender, DefaultDevice, *env.PreKey)
		if err != nil {
			return domain.DecryptedMessage{}, fmt.Errorf("%w: %v", ErrSessionSetupFailed, err)
		}
		session = newSession
	}

	ct, err := base64.StdEncoding.DecodeString(env.Body)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("message: decode envelope body: %w", err)
	}

	plaintext, err := ratchet.Decrypt(&session.Ratchet, associatedData(env.Sender, env.Recipient), env.Header, ct)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("%w: %v", ErrIntegrityFailed, err)
	}
	crypto.Wipe(ct)

	// Only persist the advanced ratchet state once decryption has actually
	// succeeded, so a failed message never consumes a skipped key slot that a
	// legitimate retransmission could still use.
	if err := s.ks.Session.SaveSession(peer, session); err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("message: save session: %w", err)
	}

	return domain.DecryptedMessage{
		From:        env.Sender,
		To:          env.Recipient,
		Plaintext:   plaintext,
		TimestampMs: env.TimestampMs,
	}, nil
}
