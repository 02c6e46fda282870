package message

import (
	"encoding/base64"
	"fmt"

	"ciphera/internal/domain"
)

// ValidateEnvelope checks the structural invariants every Envelope must
// satisfy before it is handed to the decrypt pipeline.
func ValidateEnvelope(env domain.Envelope) error {
	if env.Version != domain.EnvelopeVersion {
		return fmt.Errorf("message: unsupported envelope version %d", env.Version)
	}
	switch env.Type {
	case domain.EnvelopeInitial, domain.EnvelopeSubsequent:
	default:
		return fmt.Errorf("message: unknown envelope type %q", env.Type)
	}
	if env.Sender == "" || env.Recipient == "" {
		return fmt.Errorf("message: envelope missing sender or recipient")
	}
	if env.SessionID != sessionID(env.Sender, env.Recipient) {
		return fmt.Errorf("message: session id %q does not match sender/recipient", env.SessionID)
	}
	if env.Body == "" {
		return fmt.Errorf("message: envelope has empty body")
	}
	if _, err := base64.StdEncoding.DecodeString(env.Body); err != nil {
		return fmt.Errorf("message: envelope body is not valid base64: %w", err)
	}
	if env.TimestampMs <= 0 {
		return fmt.Errorf("message: envelope has non-positive timestamp")
	}
	if env.Type == domain.EnvelopeInitial && env.PreKey == nil {
		return fmt.Errorf("message: initial envelope missing pre-key message")
	}
	if env.Type == domain.EnvelopeSubsequent && env.PreKey != nil {
		return fmt.Errorf("message: subsequent envelope must not carry a pre-key message")
	}
	return nil
}

// sessionID is the canonical "sender::recipient" identifier threaded through
// an Envelope so a relay or log line can group a conversation without
// decrypting it.
func sessionID(from, to domain.Username) string {
	return fmt.Sprintf("%s::%s", from, to)
}

// associatedData binds an Envelope's plaintext to the (from, to) pair it
// travelled under, so a ciphertext replayed under a different sender or
// recipient fails AEAD verification instead of silently decrypting.
func associatedData(from, to domain.Username) []byte {
	return []byte(sessionID(from, to))
}
