package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// KDFParams are the scrypt tunables and salt persisted alongside a sealed
// blob so it can later be re-derived with the exact same parameters.
type KDFParams struct {
	Salt   []byte `json:"salt"`
	N      int    `json:"n"`
	R      int    `json:"r"`
	P      int    `json:"p"`
	KeyLen int    `json:"key_len"`
}

// DefaultKDFParams returns fresh scrypt parameters with a random 16-byte salt
// and the N=16384, r=8, p=1, key_len=32 tunables mandated for data at rest.
func DefaultKDFParams() (KDFParams, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return KDFParams{}, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return KDFParams{Salt: salt, N: 16384, R: 8, P: 1, KeyLen: 32}, nil
}

// Derive runs scrypt(passphrase, params) and returns a key of params.KeyLen
// bytes. Passing the same params always reproduces the same key.
func Derive(passphrase string, params KDFParams) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), params.Salt, params.N, params.R, params.P, params.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("crypto: scrypt derive: %w", err)
	}
	return key, nil
}
