// Package crypto exposes the cryptographic primitives used by Ciphera.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     ClampX25519PrivateKey, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - ML-KEM-768 post-quantum key encapsulation (GenerateKEM,
//     KEMEncapsulate, KEMDecapsulate)
//   - scrypt key derivation for data at rest (DefaultKDFParams, Derive)
//   - AES-256-GCM sealing for data at rest (Seal, Open)
//   - A binary-safe JSON codec for embedding raw key/signature material in
//     persisted records (Bytes)
//   - Constant-time byte comparison (Equal)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// X25519/Ed25519/KEM functions return fixed-size or domain-typed values
// defined in internal/domain to avoid accidental reallocations. Callers
// should treat returned secrets as sensitive and rely on Wipe when
// practical to reduce their lifetime in memory.
package crypto
