package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"ciphera/internal/relay"
	"ciphera/internal/relaystore"
)

var (
	port          int
	enableLogging bool
	dbPath        string
)

const (
	defaultPort = 8080
	minPort     = 0
	maxPort     = 65535
	shutdownTO  = 10 * time.Second
)

// main opens the relay's SQL store, builds the relay core, and serves it
// over HTTP (including the /ws streaming endpoint) until a termination
// signal is received.
func main() {
	pflag.IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	pflag.BoolVar(&enableLogging, "log", false, "enable access logging")
	pflag.StringVar(&dbPath, "db", "relay.db", "path to the relay's SQLite database")
	pflag.Parse()

	if port <= minPort || port > maxPort {
		port = defaultPort
	}

	logger := slog.New(
		slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	slog.SetDefault(logger)

	store, err := relaystore.Open(dbPath)
	if err != nil {
		slog.Error("opening relay store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	s := relay.New(store, enableLogging)
	srv := relay.NewHTTPServer(fmt.Sprintf(":%d", port), s)

	go func() {
		slog.Info("Relay listening", "addr", srv.Addr, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Relay failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTO)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
