package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Bytes is a []byte that marshals to {"__type":"ab","data":"<base64>"}
// instead of plain JSON strings, so raw key/signature/ciphertext material
// embedded in larger persisted records round-trips losslessly and is
// visibly distinguishable from text fields when inspecting store contents.
type Bytes []byte

type binaryEnvelope struct {
	Type string `json:"__type"`
	Data string `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(binaryEnvelope{
		Type: "ab",
		Data: base64.StdEncoding.EncodeToString(b),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var env binaryEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("crypto: decode binary envelope: %w", err)
	}
	if env.Type != "ab" {
		return fmt.Errorf("crypto: unexpected binary envelope type %q", env.Type)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return fmt.Errorf("crypto: decode binary payload: %w", err)
	}
	*b = raw
	return nil
}

// B64 is a small helper for logging/display contexts that want plain
// base64 rather than the {"__type":"ab",...} envelope.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
