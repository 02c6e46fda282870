package commands

import (
	"fmt"

	"ciphera/internal/crypto"

	"github.com/spf13/cobra"
)

// fingerprintCmd prints the fingerprint of the stored identity by loading it and hashing its X25519
// public key.
func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := appCtx.Identity.LoadLocal()
			if err != nil {
				return err
			}

			fp := crypto.Fingerprint(id.XPub[:])

			fmt.Printf("Identity: %s\n", id.Name)
			fmt.Printf("Fingerprint: %s\n", fp)
			return nil
		},
	}
	return cmd
}
