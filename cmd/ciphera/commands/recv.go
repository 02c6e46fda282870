package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/message"
)

// defaultRecvWindow is the short-poll window spec.md §4.7.6 describes for
// callers that cannot hold a long-lived stream.
const defaultRecvWindow = 900 * time.Millisecond

var recvWindowMs int

// recvCmd opens a subscription, collects whatever arrives within a short
// window, decrypts and decodes each envelope, and prints it.
func recvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := appCtx.Identity.LoadLocal()
			if err != nil {
				return fmt.Errorf("loading local identity: %w", err)
			}

			window := defaultRecvWindow
			if recvWindowMs > 0 {
				window = time.Duration(recvWindowMs) * time.Millisecond
			}

			sub, err := appCtx.Relay.Subscribe(cmd.Context(), local.Name)
			if err != nil {
				return fmt.Errorf("subscribing: %w", err)
			}
			defer sub.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), window)
			defer cancel()

			count := 0
			for {
				from, _, env, err := sub.Recv(ctx)
				if err != nil {
					break
				}
				dec, err := appCtx.Messages.Receive(local, env)
				if err != nil {
					fmt.Printf("[%s] dropped undeliverable message: %v\n", from, err)
					continue
				}
				app, err := message.DecodeAppMessage(dec.Plaintext)
				if err != nil {
					// Plain text from `ciphera send` is not an app message.
					app = domain.AppMessage{}
				}
				printAppMessage(dec, app)
				count++
			}
			if count == 0 {
				fmt.Println("No messages.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&recvWindowMs, "window-ms", 0, "receive window in milliseconds (default 900)")
	return cmd
}

func printAppMessage(dec domain.DecryptedMessage, app domain.AppMessage) {
	switch app.Kind {
	case domain.KindChatPrompt:
		fmt.Printf("[%s] prompt: %s\n", dec.From, app.Prompt.Prompt)
	case domain.KindChatReply:
		fmt.Printf("[%s] reply: %s\n", dec.From, app.Reply.Reply)
	case domain.KindTelemetryReport:
		fmt.Printf("[%s] telemetry report %s\n", dec.From, app.Telemetry.ReportID)
	case domain.KindControlPing:
		fmt.Printf("[%s] ping\n", dec.From)
	default:
		fmt.Printf("[%s] %s\n", dec.From, string(dec.Plaintext))
	}
}
