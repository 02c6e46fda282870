package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrOpenFailed means the ciphertext failed to authenticate: wrong key,
// wrong associated data, or a corrupted/tampered blob. Callers must not try
// to distinguish which.
var ErrOpenFailed = errors.New("crypto: aead open failed")

// Seal encrypts plaintext with AES-256-GCM under key (must be 32 bytes),
// binding associatedData, and returns nonce||ciphertext||tag.
func Seal(key, plaintext, associatedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open reverses Seal. It returns ErrOpenFailed on any authentication
// failure rather than leaking details about why.
func Open(key, sealed, associatedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrOpenFailed
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, ct, associatedData)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return pt, nil
}
