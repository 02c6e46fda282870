package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/message"
)

// initCmd bootstraps a new local identity under the given username: a fresh
// X25519 + Ed25519 keypair plus an initial batch of pre-keys, persisted to
// the encrypted store. It fails if this store already has an identity.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <username>",
		Short: "Create your local identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := domain.Username(args[0])

			id, err := appCtx.Identity.Bootstrap(name, message.DefaultDevice)
			if err != nil {
				return fmt.Errorf("bootstrapping identity: %w", err)
			}

			fmt.Println("Identity created.")
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(id.XPub[:]))
			return nil
		},
	}
}
