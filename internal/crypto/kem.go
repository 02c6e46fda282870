package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"ciphera/internal/domain"
)

// GenerateKEM returns a new ML-KEM-768 encapsulation/decapsulation key pair
// for the post-quantum leg of X3DH+KEM session establishment.
func GenerateKEM() (priv domain.KEMPrivate, pub domain.KEMPublic, err error) {
	pk, sk, err := mlkem768.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: generate ML-KEM-768 key pair: %w", err)
	}
	pubBytes := make([]byte, mlkem768.PublicKeySize)
	privBytes := make([]byte, mlkem768.PrivateKeySize)
	pk.Pack(pubBytes)
	sk.Pack(privBytes)
	return domain.KEMPrivate(privBytes), domain.KEMPublic(pubBytes), nil
}

// KEMEncapsulate generates a shared secret and its ciphertext against a
// peer's KEM public key.
func KEMEncapsulate(pub domain.KEMPublic) (ciphertext domain.KEMCiphertext, sharedSecret []byte, err error) {
	var pk mlkem768.PublicKey
	if err := pk.Unpack(pub); err != nil {
		return nil, nil, fmt.Errorf("crypto: unpack KEM public key: %w", err)
	}
	ct := make([]byte, mlkem768.CiphertextSize)
	ss := make([]byte, mlkem768.SharedKeySize)
	pk.EncapsulateTo(ct, ss, nil)
	return domain.KEMCiphertext(ct), ss, nil
}

// KEMDecapsulate recovers the shared secret from a ciphertext using the
// local KEM private key.
func KEMDecapsulate(priv domain.KEMPrivate, ciphertext domain.KEMCiphertext) ([]byte, error) {
	var sk mlkem768.PrivateKey
	if err := sk.Unpack(priv); err != nil {
		return nil, fmt.Errorf("crypto: unpack KEM private key: %w", err)
	}
	ss := make([]byte, mlkem768.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}
