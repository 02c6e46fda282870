package keystore

import (
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
)

// KemPreKeyStore manages the post-quantum KEM pre-key, mirroring
// SignedPreKeyStore's rotation lifecycle.
type KemPreKeyStore struct {
	kv *kvstore.Store
}

var _ domain.KemPreKeyStore = (*KemPreKeyStore)(nil)

func kemKey(id domain.KEMPreKeyID) string {
	return fmt.Sprintf("%s%d", keyKEM, id)
}

// NextID mints the next sequential KEM pre-key ID.
func (s *KemPreKeyStore) NextID() (domain.KEMPreKeyID, error) {
	n, err := s.kv.NextCounter(counterKEM)
	return domain.KEMPreKeyID(n), err
}

// Save stores rec and marks it the latest KEM pre-key.
func (s *KemPreKeyStore) Save(rec domain.KEMPreKeyRecord) error {
	if err := kvstore.Set(s.kv, kemKey(rec.ID), rec); err != nil {
		return err
	}
	return kvstore.Set(s.kv, keyKEMLatest, rec.ID)
}

// Load looks up the KEM pre-key record by id.
func (s *KemPreKeyStore) Load(id domain.KEMPreKeyID) (domain.KEMPreKeyRecord, bool, error) {
	return kvstore.Get[domain.KEMPreKeyRecord](s.kv, kemKey(id))
}

// Latest returns the most recently minted KEM pre-key record.
func (s *KemPreKeyStore) Latest() (domain.KEMPreKeyRecord, bool, error) {
	id, ok, err := kvstore.Get[domain.KEMPreKeyID](s.kv, keyKEMLatest)
	if err != nil || !ok {
		return domain.KEMPreKeyRecord{}, false, err
	}
	return s.Load(id)
}
