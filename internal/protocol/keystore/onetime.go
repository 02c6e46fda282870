package keystore

import (
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
)

// OneTimePreKeyStore manages one-time pre-keys: minting, consumption
// marking, and the public-only listing used to build bundles.
type OneTimePreKeyStore struct {
	kv *kvstore.Store
}

var _ domain.OneTimePreKeyStore = (*OneTimePreKeyStore)(nil)

// onDiskOneTime wraps a pre-key pair with its consumption state. Consumed
// records are kept, not deleted: consuming an already-used id again returns
// the same pair (see Consume) instead of failing as unknown.
type onDiskOneTime struct {
	Pair domain.OneTimePreKeyPair `json:"pair"`
	Used bool                     `json:"used"`
}

func oneTimeKey(id domain.OneTimePreKeyID) string {
	return fmt.Sprintf("%s%d", keyOneTime, id)
}

// NextID mints the next sequential one-time pre-key ID.
func (s *OneTimePreKeyStore) NextID() (domain.OneTimePreKeyID, error) {
	n, err := s.kv.NextCounter(counterOneTime)
	return domain.OneTimePreKeyID(n), err
}

// Save stores a freshly minted one-time pre-key pair as unused.
func (s *OneTimePreKeyStore) Save(rec domain.OneTimePreKeyPair) error {
	if err := kvstore.Set(s.kv, oneTimeKey(rec.ID), onDiskOneTime{Pair: rec}); err != nil {
		return err
	}
	return kvstore.Set(s.kv, keyOneTimeLatest, rec.ID)
}

// Consume resolves rec for id and marks it used. ok is false only if id is
// unknown; consuming an already-used id is idempotent and returns the same
// record with ok true, since a peer may legitimately retransmit the same
// initial envelope.
func (s *OneTimePreKeyStore) Consume(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	rec, ok, err := kvstore.Get[onDiskOneTime](s.kv, oneTimeKey(id))
	if err != nil || !ok {
		return domain.OneTimePreKeyPair{}, false, err
	}
	if !rec.Used {
		rec.Used = true
		if err := kvstore.Set(s.kv, oneTimeKey(id), rec); err != nil {
			return domain.OneTimePreKeyPair{}, false, err
		}
	}
	return rec.Pair, true, nil
}

// IsUsed reports whether id has already been consumed.
func (s *OneTimePreKeyStore) IsUsed(id domain.OneTimePreKeyID) (bool, error) {
	rec, ok, err := kvstore.Get[onDiskOneTime](s.kv, oneTimeKey(id))
	if err != nil || !ok {
		return false, err
	}
	return rec.Used, nil
}

// Latest returns the public half of the most recently minted one-time
// pre-key, for inclusion in freshly uploaded bundles.
func (s *OneTimePreKeyStore) Latest() (domain.OneTimePreKeyPublic, bool, error) {
	id, ok, err := kvstore.Get[domain.OneTimePreKeyID](s.kv, keyOneTimeLatest)
	if err != nil || !ok {
		return domain.OneTimePreKeyPublic{}, false, err
	}
	rec, ok, err := kvstore.Get[onDiskOneTime](s.kv, oneTimeKey(id))
	if err != nil || !ok {
		return domain.OneTimePreKeyPublic{}, false, err
	}
	return domain.OneTimePreKeyPublic{ID: rec.Pair.ID, Pub: rec.Pair.Pub}, true, nil
}
