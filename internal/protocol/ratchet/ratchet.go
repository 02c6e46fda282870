// Package ratchet implements the Double Ratchet algorithm following
// Signal's design: a per-message symmetric-key ratchet layered on a
// Diffie-Hellman ratchet that advances whenever the peer's ratchet public
// key changes.
package ratchet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const (
	aeadKeySize  = chacha20poly1305.KeySize
	nonceSize    = chacha20poly1305.NonceSize
	maxSkippedMK = 1000
)

var (
	errChainUninitialised        = errors.New("ratchet: chain key uninitialised")
	ErrSkippedMessageKeyNotFound = errors.New("ratchet: skipped message key not found")
)

// InitAsInitiator bootstraps the ratchet state for the side that ran the
// X3DH+KEM initiator handshake, deriving only the send chain from the
// agreed root key and the peer's published identity key.
func InitAsInitiator(root []byte, peerIdentity domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := freshX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}

	dhOut, err := crypto.DH(priv, peerIdentity)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, sendCK := kdfRK(root, dhOut[:])
	crypto.Wipe(dhOut[:])

	return domain.RatchetState{
		RootKey:                 newRoot,
		DiffieHellmanPrivate:    priv,
		DiffieHellmanPublic:     pub,
		PeerDiffieHellmanPublic: peerIdentity,
		SendChainKey:            sendCK,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// InitAsResponder bootstraps the ratchet state for the side that ran the
// X3DH+KEM responder handshake, deriving only the receive chain from the
// agreed root key and the initiator's ephemeral ratchet public key.
func InitAsResponder(
	root []byte,
	ourIdentityPriv domain.X25519Private,
	senderRatchetPub domain.X25519Public,
) (domain.RatchetState, error) {
	priv, pub, err := freshX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}

	dhOut, err := crypto.DH(ourIdentityPriv, senderRatchetPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, recvCK := kdfRK(root, dhOut[:])
	crypto.Wipe(dhOut[:])

	return domain.RatchetState{
		RootKey:                 newRoot,
		DiffieHellmanPrivate:    priv,
		DiffieHellmanPublic:     pub,
		PeerDiffieHellmanPublic: senderRatchetPub,
		ReceiveChainKey:         recvCK,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// Encrypt encrypts plaintext under the send chain, performing a lazy DH
// ratchet step on the first send when SendChainKey is nil.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (domain.RatchetHeader, []byte, error) {
	if st == nil {
		return domain.RatchetHeader{}, nil, errors.New("ratchet: state uninitialised")
	}

	if st.SendChainKey == nil {
		st.PreviousChainLength = st.SendMessageIndex
		st.SendMessageIndex, st.ReceiveMessageIndex = 0, 0

		priv, pub, err := freshX25519()
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		dhOut, err := crypto.DH(priv, st.PeerDiffieHellmanPublic)
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		newRoot, sendCK := kdfRK(st.RootKey, dhOut[:])
		crypto.Wipe(dhOut[:])

		st.RootKey, st.DiffieHellmanPrivate, st.DiffieHellmanPublic, st.SendChainKey = newRoot, priv, pub, sendCK
	}

	mk, err := kdfCKSend(st)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}

	header := domain.RatchetHeader{
		DiffieHellmanPublicKey: st.DiffieHellmanPublic.Slice(),
		PreviousChainLength:    st.PreviousChainLength,
		MessageIndex:           st.SendMessageIndex,
	}
	ct, err := seal(mk, header, ad, plaintext)
	crypto.Wipe(mk)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}

	st.SendMessageIndex++
	st.HandshakeComplete = true
	return header, ct, nil
}

// Decrypt decrypts ciphertext, handling skipped keys and DH ratchet steps.
func Decrypt(st *domain.RatchetState, ad []byte, header domain.RatchetHeader, ciphertext []byte) ([]byte, error) {
	if st == nil {
		return nil, errors.New("ratchet: state uninitialised")
	}

	skipUntil(st, header.PreviousChainLength)
	keyID := skippedKeyID(st.PeerDiffieHellmanPublic, header.MessageIndex)
	if mk, ok := st.SkippedKeys[keyID]; ok {
		delete(st.SkippedKeys, keyID)
		pt, err := open(mk, header, ad, ciphertext)
		crypto.Wipe(mk)
		if err != nil {
			return nil, err
		}
		st.HandshakeComplete = true
		return pt, nil
	}

	if !crypto.Equal(st.PeerDiffieHellmanPublic.Slice(), header.DiffieHellmanPublicKey) {
		var peer domain.X25519Public
		copy(peer[:], header.DiffieHellmanPublicKey)

		dhOut, err := crypto.DH(st.DiffieHellmanPrivate, peer)
		if err != nil {
			return nil, err
		}
		newRoot, recvCK := kdfRK(st.RootKey, dhOut[:])
		crypto.Wipe(dhOut[:])

		priv, pub, err := freshX25519()
		if err != nil {
			return nil, err
		}
		dhOut2, err := crypto.DH(priv, peer)
		if err != nil {
			return nil, err
		}
		rootKey2, sendCK := kdfRK(newRoot, dhOut2[:])
		crypto.Wipe(dhOut2[:])

		st.PreviousChainLength, st.SendMessageIndex, st.ReceiveMessageIndex = st.SendMessageIndex, 0, 0
		st.RootKey = rootKey2
		st.DiffieHellmanPrivate, st.DiffieHellmanPublic = priv, pub
		st.PeerDiffieHellmanPublic = peer
		st.SendChainKey, st.ReceiveChainKey = sendCK, recvCK
		st.SkippedKeys = make(map[string][]byte)
	}

	skipUntil(st, header.MessageIndex)
	mk, err := kdfCKRecv(st)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, header, ad, ciphertext)
	crypto.Wipe(mk)
	if err != nil {
		return nil, err
	}
	st.ReceiveMessageIndex++
	st.HandshakeComplete = true
	return pt, nil
}

func freshX25519() (domain.X25519Private, domain.X25519Public, error) {
	var priv domain.X25519Private
	if _, err := rand.Read(priv[:]); err != nil {
		return priv, domain.X25519Public{}, err
	}
	crypto.ClampX25519PrivateKey(&priv)

	pubBytes, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return priv, domain.X25519Public{}, err
	}
	var pub domain.X25519Public
	copy(pub[:], pubBytes)
	return priv, pub, nil
}

// kdfRK derives a new root key and chain key from the DH output.
func kdfRK(root, dh []byte) (newRoot, ck []byte) {
	hk := hkdf.New(sha256.New, dh, root, []byte("DR|rk"))
	newRoot = make([]byte, 32)
	ck = make([]byte, 32)
	io.ReadFull(hk, newRoot)
	io.ReadFull(hk, ck)
	return
}

// kdfCKSend advances the send-chain key, returning the next message key.
func kdfCKSend(st *domain.RatchetState) ([]byte, error) {
	if st.SendChainKey == nil {
		return nil, errChainUninitialised
	}
	hk := hkdf.New(sha256.New, st.SendChainKey, nil, []byte("DR|ck"))
	nextCK := make([]byte, 32)
	mk := make([]byte, 32)
	io.ReadFull(hk, nextCK)
	io.ReadFull(hk, mk)
	st.SendChainKey = nextCK
	return mk, nil
}

// kdfCKRecv advances the receive-chain key, returning the next message key.
func kdfCKRecv(st *domain.RatchetState) ([]byte, error) {
	if st.ReceiveChainKey == nil {
		return nil, errChainUninitialised
	}
	hk := hkdf.New(sha256.New, st.ReceiveChainKey, nil, []byte("DR|ck"))
	nextCK := make([]byte, 32)
	mk := make([]byte, 32)
	io.ReadFull(hk, nextCK)
	io.ReadFull(hk, mk)
	st.ReceiveChainKey = nextCK
	return mk, nil
}

// seal encrypts plaintext with ChaCha20-Poly1305 using header||ad as
// associated data. Ratchet-internal message sealing stays on the
// ChaCha20-Poly1305 this package always used; it is a different concern
// from the AES-256-GCM mandated for data-at-rest in internal/crypto.
func seal(mk []byte, header domain.RatchetHeader, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.MessageIndex)
	return aead.Seal(nil, nonce, plaintext, append(ad, headerBytes(header)...)), nil
}

// open decrypts ciphertext with ChaCha20-Poly1305.
func open(mk []byte, header domain.RatchetHeader, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.MessageIndex)
	return aead.Open(nil, nonce, ciphertext, append(ad, headerBytes(header)...))
}

// headerBytes serializes the DH public key, PN, and N into the bytes bound
// as associated data alongside the caller-supplied ad.
func headerBytes(h domain.RatchetHeader) []byte {
	var tmp [4]byte
	out := append([]byte{}, h.DiffieHellmanPublicKey...)
	binary.BigEndian.PutUint32(tmp[:], h.PreviousChainLength)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], h.MessageIndex)
	return append(out, tmp[:]...)
}

// skipUntil derives and stores skipped message keys up to (but excluding) n.
func skipUntil(st *domain.RatchetState, n uint32) {
	for st.ReceiveMessageIndex < n {
		mk, err := kdfCKRecv(st)
		if err != nil {
			return
		}
		if len(st.SkippedKeys) >= maxSkippedMK {
			for k := range st.SkippedKeys {
				delete(st.SkippedKeys, k)
				break
			}
		}
		st.SkippedKeys[skippedKeyID(st.PeerDiffieHellmanPublic, st.ReceiveMessageIndex)] = mk
		st.ReceiveMessageIndex++
	}
}

// skippedKeyID yields a unique map key from peerDHPub||n.
func skippedKeyID(pub domain.X25519Public, n uint32) string {
	var buf [36]byte
	copy(buf[:32], pub[:])
	binary.BigEndian.PutUint32(buf[32:], n)
	return string(buf[:])
}
