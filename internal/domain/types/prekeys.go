package types

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// SignedPreKeyRecord is the medium-lived signed pre-key, rotated by reminting.
type SignedPreKeyRecord struct {
	ID          SignedPreKeyID `json:"id"`
	CreatedAtMs int64          `json:"created_at_ms"`
	Priv        X25519Private  `json:"priv"`
	Pub         X25519Public   `json:"pub"`
	Signature   []byte         `json:"signature"`
}

// KEMPreKeyRecord is the post-quantum analogue of SignedPreKeyRecord.
type KEMPreKeyRecord struct {
	ID          KEMPreKeyID `json:"id"`
	CreatedAtMs int64       `json:"created_at_ms"`
	Priv        KEMPrivate  `json:"priv"`
	Pub         KEMPublic   `json:"pub"`
	Signature   []byte      `json:"signature"`
}

// PreKeyBundle is the public-only projection a peer publishes so others can
// establish a session without a live handshake (spec.md §3.1).
type PreKeyBundle struct {
	Username        Username             `json:"username"`
	Device          Device               `json:"device"`
	RegistrationID  uint32               `json:"registration_id"`
	IdentityKey     X25519Public         `json:"identity_key"`
	SigningKey      Ed25519Public        `json:"signing_key"`
	SignedPreKeyID  SignedPreKeyID       `json:"signed_pre_key_id"`
	SignedPreKey    X25519Public         `json:"signed_pre_key"`
	SignedPreKeySig []byte               `json:"signed_pre_key_signature"`
	OneTimePreKey   *OneTimePreKeyPublic `json:"one_time_pre_key,omitempty"`
	KEMPreKeyID     KEMPreKeyID          `json:"kem_pre_key_id"`
	KEMPreKey       KEMPublic            `json:"kem_pre_key"`
	KEMPreKeySig    []byte               `json:"kem_pre_key_signature"`
}

// PreKeyMessage carries the X3DH+KEM handshake parameters in the first
// envelope of a conversation (the "initial" message).
type PreKeyMessage struct {
	InitiatorIdentityKey X25519Public    `json:"initiator_identity_key"`
	EphemeralKey         X25519Public    `json:"ephemeral_key"`
	SignedPreKeyID       SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
	KEMPreKeyID          KEMPreKeyID     `json:"kem_pre_key_id"`
	KEMCiphertext        KEMCiphertext   `json:"kem_ciphertext"`
}
