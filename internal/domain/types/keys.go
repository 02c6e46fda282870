package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// KEMPublic is a post-quantum KEM (ML-KEM-768) public key. Stored as a plain
// byte slice: unlike X25519/Ed25519 the encoded size is not a small fixed
// array worth spelling out as [N]byte throughout the codebase.
type KEMPublic []byte

// KEMPrivate is a post-quantum KEM (ML-KEM-768) private (decapsulation) key.
type KEMPrivate []byte

// KEMCiphertext is the encapsulated shared-secret ciphertext produced by a
// KEM encapsulation, carried in an initial message's PreKeyMessage.
type KEMCiphertext []byte
