package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
)

// startSessionCmd fetches peer's published pre-key bundle and runs the X3DH
// handshake against it, persisting a new session for future messaging.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a secure session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.Username(args[0])
			ctx := cmd.Context()

			local, err := appCtx.Identity.LoadLocal()
			if err != nil {
				return fmt.Errorf("loading local identity: %w", err)
			}

			bundle, err := appCtx.Relay.FetchBundle(ctx, peer)
			if err != nil {
				return fmt.Errorf("fetching bundle for %q: %w", peer, err)
			}

			_, _, replaced, err := appCtx.Identity.InitSessionFromBundle(local, bundle)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}
			if replaced {
				fmt.Printf("Warning: %s's identity key has changed since it was last seen.\n", peer)
			}

			fmt.Printf("Session created with %s\n", peer)
			return nil
		},
	}
}
