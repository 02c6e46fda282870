package message

import (
	"encoding/json"
	"fmt"

	"ciphera/internal/domain"
)

// EncodeAppMessage validates msg and marshals it to the plaintext bytes
// carried inside an Envelope's decrypted body.
func EncodeAppMessage(msg domain.AppMessage) ([]byte, error) {
	if err := ValidateAppMessage(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// DecodeAppMessage unmarshals and validates plaintext recovered from a
// decrypted Envelope.
func DecodeAppMessage(plaintext []byte) (domain.AppMessage, error) {
	var msg domain.AppMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return domain.AppMessage{}, fmt.Errorf("message: decode app message: %w", err)
	}
	if err := ValidateAppMessage(msg); err != nil {
		return domain.AppMessage{}, err
	}
	return msg, nil
}

// ValidateAppMessage checks that exactly one payload field is populated and
// that it matches Kind.
func ValidateAppMessage(msg domain.AppMessage) error {
	set := 0
	if msg.Prompt != nil {
		set++
	}
	if msg.Reply != nil {
		set++
	}
	if msg.Telemetry != nil {
		set++
	}
	if msg.Ping != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("message: app message must populate exactly one payload, got %d", set)
	}

	switch msg.Kind {
	case domain.KindChatPrompt:
		if msg.Prompt == nil {
			return fmt.Errorf("message: kind %q requires a prompt payload", msg.Kind)
		}
		if msg.Prompt.RequestID == "" {
			return fmt.Errorf("message: chat prompt missing request id")
		}
	case domain.KindChatReply:
		if msg.Reply == nil {
			return fmt.Errorf("message: kind %q requires a reply payload", msg.Kind)
		}
		if msg.Reply.RequestID == "" {
			return fmt.Errorf("message: chat reply missing request id")
		}
	case domain.KindTelemetryReport:
		if msg.Telemetry == nil {
			return fmt.Errorf("message: kind %q requires a telemetry payload", msg.Kind)
		}
		if msg.Telemetry.ReportID == "" {
			return fmt.Errorf("message: telemetry report missing report id")
		}
	case domain.KindControlPing:
		if msg.Ping == nil {
			return fmt.Errorf("message: kind %q requires a ping payload", msg.Kind)
		}
	default:
		return fmt.Errorf("message: unknown app message kind %q", msg.Kind)
	}
	return nil
}
