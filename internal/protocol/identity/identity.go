// Package identity implements the C4 lifecycle operations that sit above
// the raw crypto primitives and typed key stores: bootstrapping a local
// identity, minting and exporting pre-key material, and running the
// X3DH+KEM handshake to establish a session in either direction.
package identity

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/keystore"
	"ciphera/internal/protocol/ratchet"
	"ciphera/internal/protocol/x3dh"
)

// DefaultOneTimePreKeyBatch is how many one-time pre-keys Bootstrap and the
// daemon's Replenish mint at once.
const DefaultOneTimePreKeyBatch = 20

// Service implements identity bootstrap, pre-key lifecycle, and session
// establishment over a Keystore.
type Service struct {
	ks *keystore.Keystore
}

// New returns a Service backed by ks.
func New(ks *keystore.Keystore) *Service {
	return &Service{ks: ks}
}

// Bootstrap creates and persists a new local identity for (name, device).
// It fails if an identity already exists in this store.
func (s *Service) Bootstrap(name domain.Username, device domain.Device) (domain.Identity, error) {
	has, err := s.ks.Identity.HasIdentity()
	if err != nil {
		return domain.Identity{}, err
	}
	if has {
		return domain.Identity{}, fmt.Errorf("identity: already bootstrapped")
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("identity: generate x25519: %w", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("identity: generate ed25519: %w", err)
	}
	regID, err := randomRegistrationID()
	if err != nil {
		return domain.Identity{}, err
	}

	id := domain.Identity{
		Name:           name,
		Device:         device,
		RegistrationID: regID,
		XPub:           xPub,
		XPriv:          xPriv,
		EdPub:          edPub,
		EdPriv:         edPriv,
	}
	if err := s.ks.Identity.SaveIdentity(id); err != nil {
		return domain.Identity{}, fmt.Errorf("identity: save: %w", err)
	}
	if err := s.MintPrekeys(DefaultOneTimePreKeyBatch); err != nil {
		return domain.Identity{}, fmt.Errorf("identity: mint initial pre-keys: %w", err)
	}
	return id, nil
}

// LoadLocal returns the previously bootstrapped local identity.
func (s *Service) LoadLocal() (domain.Identity, error) {
	return s.ks.Identity.LoadIdentity()
}

// MintPrekeys rotates in a fresh signed pre-key and KEM pre-key, and tops
// up the one-time pre-key pool by oneTimeCount additional keys.
func (s *Service) MintPrekeys(oneTimeCount int) error {
	local, err := s.ks.Identity.LoadIdentity()
	if err != nil {
		return err
	}

	spkID, err := s.ks.SignedPre.NextID()
	if err != nil {
		return err
	}
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return fmt.Errorf("identity: generate signed pre-key: %w", err)
	}
	spkRec := domain.SignedPreKeyRecord{
		ID:          spkID,
		CreatedAtMs: time.Now().UnixMilli(),
		Priv:        spkPriv,
		Pub:         spkPub,
		Signature:   crypto.SignEd25519(local.EdPriv, spkPub.Slice()),
	}
	if err := s.ks.SignedPre.Save(spkRec); err != nil {
		return fmt.Errorf("identity: save signed pre-key: %w", err)
	}

	kemID, err := s.ks.KemPre.NextID()
	if err != nil {
		return err
	}
	kemPriv, kemPub, err := crypto.GenerateKEM()
	if err != nil {
		return fmt.Errorf("identity: generate kem pre-key: %w", err)
	}
	kemRec := domain.KEMPreKeyRecord{
		ID:          kemID,
		CreatedAtMs: time.Now().UnixMilli(),
		Priv:        kemPriv,
		Pub:         kemPub,
		Signature:   crypto.SignEd25519(local.EdPriv, kemPub),
	}
	if err := s.ks.KemPre.Save(kemRec); err != nil {
		return fmt.Errorf("identity: save kem pre-key: %w", err)
	}

	for i := 0; i < oneTimeCount; i++ {
		id, err := s.ks.OneTime.NextID()
		if err != nil {
			return err
		}
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return fmt.Errorf("identity: generate one-time pre-key: %w", err)
		}
		if err := s.ks.OneTime.Save(domain.OneTimePreKeyPair{ID: id, Priv: priv, Pub: pub}); err != nil {
			return fmt.Errorf("identity: save one-time pre-key: %w", err)
		}
	}
	return nil
}

// ExportBundle builds the public-only PreKeyBundle this identity publishes
// to the relay so peers can establish sessions without a live handshake.
func (s *Service) ExportBundle() (domain.PreKeyBundle, error) {
	local, err := s.ks.Identity.LoadIdentity()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	spk, ok, err := s.ks.SignedPre.Latest()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("identity: no signed pre-key minted")
	}
	kem, ok, err := s.ks.KemPre.Latest()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("identity: no kem pre-key minted")
	}

	bundle := domain.PreKeyBundle{
		Username:        local.Name,
		Device:          local.Device,
		RegistrationID:  local.RegistrationID,
		IdentityKey:     local.XPub,
		SigningKey:      local.EdPub,
		SignedPreKeyID:  spk.ID,
		SignedPreKey:    spk.Pub,
		SignedPreKeySig: spk.Signature,
		KEMPreKeyID:     kem.ID,
		KEMPreKey:       kem.Pub,
		KEMPreKeySig:    kem.Signature,
	}
	if otp, ok, err := s.ks.OneTime.Latest(); err != nil {
		return domain.PreKeyBundle{}, err
	} else if ok {
		used, err := s.ks.OneTime.IsUsed(otp.ID)
		if err != nil {
			return domain.PreKeyBundle{}, err
		}
		if !used {
			bundle.OneTimePreKey = &otp
		}
	}
	return bundle, nil
}

// InitSessionFromBundle runs the initiator side of X3DH+KEM against a
// peer's published bundle, pinning the peer's identity key under
// trust-on-first-use. replaced reports whether a different key was
// already pinned for this peer device.
func (s *Service) InitSessionFromBundle(local domain.Identity, bundle domain.PreKeyBundle) (session domain.Session, pkm domain.PreKeyMessage, replaced bool, err error) {
	peer := domain.PeerDevice{Peer: bundle.Username, Device: bundle.Device}
	replaced, err = s.ks.Identity.PinPeerIdentity(peer, bundle.IdentityKey)
	if err != nil {
		return domain.Session{}, domain.PreKeyMessage{}, false, err
	}

	root, pkm, err := x3dh.InitiatorHandshake(local, bundle)
	if err != nil {
		return domain.Session{}, domain.PreKeyMessage{}, replaced, err
	}
	ratchetState, err := ratchet.InitAsInitiator(root, bundle.IdentityKey)
	if err != nil {
		return domain.Session{}, domain.PreKeyMessage{}, replaced, err
	}
	crypto.Wipe(root)

	session = domain.Session{
		Peer:       bundle.Username,
		Device:     bundle.Device,
		Ratchet:    ratchetState,
		CreatedUTC: time.Now().Unix(),
	}
	if err := s.ks.Session.SaveSession(peer, session); err != nil {
		return domain.Session{}, domain.PreKeyMessage{}, replaced, err
	}
	return session, pkm, replaced, nil
}

// AcceptSessionFromPreKeyMessage runs the responder side of X3DH+KEM using
// the local pre-key material referenced by pm, establishing a new session
// for (peer, peerDevice). The one-time pre-key referenced, if any, is
// consumed (marked used, not deleted) as part of this call.
func (s *Service) AcceptSessionFromPreKeyMessage(
	local domain.Identity,
	peer domain.Username,
	peerDevice domain.Device,
	pm domain.PreKeyMessage,
) (session domain.Session, replaced bool, err error) {
	peerKey := domain.PeerDevice{Peer: peer, Device: peerDevice}
	replaced, err = s.ks.Identity.PinPeerIdentity(peerKey, pm.InitiatorIdentityKey)
	if err != nil {
		return domain.Session{}, false, err
	}

	spkRec, ok, err := s.ks.SignedPre.Load(pm.SignedPreKeyID)
	if err != nil {
		return domain.Session{}, replaced, err
	}
	if !ok {
		return domain.Session{}, replaced, fmt.Errorf("identity: unknown signed pre-key id %d", pm.SignedPreKeyID)
	}
	kemRec, ok, err := s.ks.KemPre.Load(pm.KEMPreKeyID)
	if err != nil {
		return domain.Session{}, replaced, err
	}
	if !ok {
		return domain.Session{}, replaced, fmt.Errorf("identity: unknown kem pre-key id %d", pm.KEMPreKeyID)
	}

	var otpPriv *domain.X25519Private
	if pm.OneTimePreKeyID != 0 {
		otp, ok, err := s.ks.OneTime.Consume(pm.OneTimePreKeyID)
		if err != nil {
			return domain.Session{}, replaced, err
		}
		if !ok {
			return domain.Session{}, replaced, fmt.Errorf("identity: unknown one-time pre-key id %d", pm.OneTimePreKeyID)
		}
		otpPriv = &otp.Priv
	}

	root, err := x3dh.ResponderHandshake(local, spkRec.Priv, otpPriv, kemRec.Priv, pm)
	if err != nil {
		return domain.Session{}, replaced, err
	}
	ratchetState, err := ratchet.InitAsResponder(root, local.XPriv, pm.EphemeralKey)
	if err != nil {
		return domain.Session{}, replaced, err
	}
	crypto.Wipe(root)

	session = domain.Session{
		Peer:       peer,
		Device:     peerDevice,
		Ratchet:    ratchetState,
		CreatedUTC: time.Now().Unix(),
	}
	if err := s.ks.Session.SaveSession(peerKey, session); err != nil {
		return domain.Session{}, replaced, err
	}
	return session, replaced, nil
}

// maxRegistrationID is the upper bound spec §3.1/§4.3 place on registration
// ids: drawn uniformly from [1, maxRegistrationID].
const maxRegistrationID = 16380

func randomRegistrationID() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("identity: generate registration id: %w", err)
	}
	return 1 + (binary.BigEndian.Uint32(b[:]) % maxRegistrationID), nil
}
