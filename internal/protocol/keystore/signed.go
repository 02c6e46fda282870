package keystore

import (
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
)

// SignedPreKeyStore manages the medium-lived signed pre-key.
type SignedPreKeyStore struct {
	kv *kvstore.Store
}

var _ domain.SignedPreKeyStore = (*SignedPreKeyStore)(nil)

func signedKey(id domain.SignedPreKeyID) string {
	return fmt.Sprintf("%s%d", keySigned, id)
}

// NextID mints the next sequential signed pre-key ID.
func (s *SignedPreKeyStore) NextID() (domain.SignedPreKeyID, error) {
	n, err := s.kv.NextCounter(counterSigned)
	return domain.SignedPreKeyID(n), err
}

// Save stores rec and marks it the latest signed pre-key.
func (s *SignedPreKeyStore) Save(rec domain.SignedPreKeyRecord) error {
	if err := kvstore.Set(s.kv, signedKey(rec.ID), rec); err != nil {
		return err
	}
	return kvstore.Set(s.kv, keySignedLatest, rec.ID)
}

// Load looks up the signed pre-key record by id.
func (s *SignedPreKeyStore) Load(id domain.SignedPreKeyID) (domain.SignedPreKeyRecord, bool, error) {
	return kvstore.Get[domain.SignedPreKeyRecord](s.kv, signedKey(id))
}

// Latest returns the most recently minted signed pre-key record.
func (s *SignedPreKeyStore) Latest() (domain.SignedPreKeyRecord, bool, error) {
	id, ok, err := kvstore.Get[domain.SignedPreKeyID](s.kv, keySignedLatest)
	if err != nil || !ok {
		return domain.SignedPreKeyRecord{}, false, err
	}
	return s.Load(id)
}
