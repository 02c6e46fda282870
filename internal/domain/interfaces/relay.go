package interfaces

import (
	"context"

	domaintypes "ciphera/internal/domain/types"
)

// RelayClient is how a daemon talks to the relay: request/response calls plus
// a streaming subscription (spec.md §4.6/§6).
type RelayClient interface {
	Register(ctx context.Context, id domaintypes.Username) error
	UploadBundle(ctx context.Context, id domaintypes.Username, bundle domaintypes.PreKeyBundle) error
	FetchBundle(ctx context.Context, id domaintypes.Username) (domaintypes.PreKeyBundle, error)
	SendMessage(ctx context.Context, from, to domaintypes.Username, env domaintypes.Envelope) (queued, delivered bool, err error)

	// Subscribe opens a streaming subscription for clientID. The returned
	// Subscription yields one envelope per successful delivery until closed.
	Subscribe(ctx context.Context, clientID domaintypes.Username) (Subscription, error)
}

// Subscription is a live streaming delivery channel from the relay.
type Subscription interface {
	// Recv blocks until the next delivered envelope, ctx cancellation, or a
	// terminal close. err wraps the close reason (e.g. "superseded").
	Recv(ctx context.Context) (from, to domaintypes.Username, env domaintypes.Envelope, err error)
	Close() error
}
