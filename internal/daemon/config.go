package daemon

import (
	"fmt"
	"time"

	"ciphera/internal/domain"
)

// Config carries the recognized daemon-level configuration inputs (spec.md
// §6.5). RelayBaseURL, StorePath, Passphrase, and LocalID are required;
// PeerID, IntervalMS, and ChatTimeoutMS are only meaningful to roles that use
// them (a default peer, a telemetry publish cadence, the synchronous
// chat-reply wait).
type Config struct {
	RelayBaseURL  string
	StorePath     string
	Passphrase    string
	LocalID       domain.Username
	PeerID        domain.Username
	IntervalMS    int
	ChatTimeoutMS int

	// OneTimePreKeyBatch overrides how many one-time pre-keys are minted on
	// bootstrap and on each replenishment. Defaults to
	// identity.DefaultOneTimePreKeyBatch when zero.
	OneTimePreKeyBatch int
}

// chatTimeout returns ChatTimeoutMS as a duration, defaulting to the
// synchronous chat-reply wait window from spec.md §5 (25s) when unset.
func (c Config) chatTimeout() time.Duration {
	if c.ChatTimeoutMS <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.ChatTimeoutMS) * time.Millisecond
}

// validate checks the fields that are required regardless of role.
func (c Config) validate() error {
	if c.Passphrase == "" {
		return fmt.Errorf("daemon: passphrase required")
	}
	if c.StorePath == "" {
		return fmt.Errorf("daemon: store_path required")
	}
	if c.RelayBaseURL == "" {
		return fmt.Errorf("daemon: relay_base_url required")
	}
	if c.LocalID == "" {
		return fmt.Errorf("daemon: local_id required")
	}
	return nil
}
