package crypto

import (
	"crypto/sha256"
	"encoding/base32"

	"ciphera/internal/domain"
)

// Fingerprint renders a short, display-friendly fingerprint for an identity
// public key: the first 10 bytes of SHA-256(pub), base32-encoded without
// padding. Only 80 bits of the digest are kept, so two different public keys
// can in principle share a fingerprint.
func Fingerprint(pub domain.X25519Public) domain.Fingerprint {
	sum := sha256.Sum256(pub.Slice())
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:10])
	return domain.Fingerprint(enc)
}
