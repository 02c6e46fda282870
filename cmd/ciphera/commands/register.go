package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/protocol/identity"
)

// registerCmd mints a fresh batch of one-time pre-keys, rotates the signed
// and KEM pre-key, assembles a PreKeyBundle for the local identity, and
// publishes both the registration and the bundle to the relay.
func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish your prekey bundle to the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := appCtx.Identity.LoadLocal()
			if err != nil {
				return fmt.Errorf("loading local identity: %w", err)
			}

			if err := appCtx.Identity.MintPrekeys(identity.DefaultOneTimePreKeyBatch); err != nil {
				return fmt.Errorf("minting prekeys: %w", err)
			}

			bundle, err := appCtx.Identity.ExportBundle()
			if err != nil {
				return fmt.Errorf("exporting bundle: %w", err)
			}

			ctx := cmd.Context()
			if err := appCtx.Relay.Register(ctx, local.Name); err != nil {
				return fmt.Errorf("registering with relay: %w", err)
			}
			if err := appCtx.Relay.UploadBundle(ctx, local.Name, bundle); err != nil {
				return fmt.Errorf("uploading bundle: %w", err)
			}

			fmt.Println("Registered pre-keys with relay")
			return nil
		},
	}
	return cmd
}
