package app

import (
	"fmt"
	"net/http"
	"path/filepath"

	"ciphera/internal/domain"
	"ciphera/internal/kvstore"
	"ciphera/internal/protocol/identity"
	"ciphera/internal/protocol/keystore"
	"ciphera/internal/protocol/message"
	"ciphera/internal/relayclient"
)

// storeFileName is the encrypted identity store's file name under
// Config.HomeDir.
const storeFileName = "identity.db"

// Wire bundles the opened store and protocol services the CLI commands use.
type Wire struct {
	Store    *kvstore.Store
	Keystore *keystore.Keystore
	Identity *identity.Service
	Messages *message.Service
	Relay    domain.RelayClient

	HTTPClient *http.Client
}

// NewWire constructs the dependency graph from cfg: it opens (creating if
// necessary) the encrypted identity store under cfg.HomeDir, then builds the
// typed key stores and protocol services over it.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("app: passphrase required (-p)")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	relayClient := relayclient.NewHTTP(cfg.RelayURL, httpClient)

	storePath := filepath.Join(cfg.HomeDir, storeFileName)
	store, err := kvstore.Open(storePath, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("app: open identity store: %w", err)
	}

	ks := keystore.New(store)
	idSvc := identity.New(ks)
	msgSvc := message.New(ks, idSvc)

	return &Wire{
		Store:      store,
		Keystore:   ks,
		Identity:   idSvc,
		Messages:   msgSvc,
		Relay:      relayClient,
		HTTPClient: httpClient,
	}, nil
}

// Close releases the underlying store handle.
func (w *Wire) Close() error {
	return w.Store.Close()
}
