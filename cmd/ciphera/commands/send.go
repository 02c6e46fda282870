package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/message"
)

// sendCmd encrypts and sends plaintext to <peer>. If no session exists yet
// it fetches the peer's published bundle and runs X3DH before encrypting,
// mirroring what start-session does explicitly.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.Username(args[0])
			plaintext := []byte(args[1])
			ctx := cmd.Context()

			local, err := appCtx.Identity.LoadLocal()
			if err != nil {
				return fmt.Errorf("loading local identity: %w", err)
			}

			var bundle *domain.PreKeyBundle
			_, ok, err := appCtx.Keystore.Session.LoadSession(domain.PeerDevice{Peer: peer, Device: message.DefaultDevice})
			if err != nil {
				return fmt.Errorf("checking for existing session: %w", err)
			}
			if !ok {
				b, err := appCtx.Relay.FetchBundle(ctx, peer)
				if err != nil {
					return fmt.Errorf("no session and no bundle available for %q: %w", peer, err)
				}
				bundle = &b
			}

			env, err := appCtx.Messages.Send(local, peer, plaintext, bundle)
			if err != nil {
				return fmt.Errorf("encrypting message for %q: %w", peer, err)
			}

			_, delivered, err := appCtx.Relay.SendMessage(ctx, local.Name, peer, env)
			if err != nil {
				return fmt.Errorf("sending message to %q: %w", peer, err)
			}

			if delivered {
				fmt.Println("Message sent and delivered")
			} else {
				fmt.Println("Message sent, queued for delivery")
			}
			return nil
		},
	}
	return cmd
}
