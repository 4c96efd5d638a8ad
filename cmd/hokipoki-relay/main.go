// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hokipoki-relay runs the central matching server: it authenticates
// peers against an OIDC issuer, holds the authoritative task table, and
// forwards the P2P-relay channel between matched requester/provider
// pairs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hokipoki/hokipoki/relay"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr string
	var issuerURL string
	var stateDB string
	var debug bool

	flagSet := pflag.NewFlagSet("hokipoki-relay", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "listen", ":8787", "address to listen on")
	flagSet.StringVar(&issuerURL, "issuer", os.Getenv("HOKIPOKI_KEYCLOAK_ISSUER"), "OIDC issuer URL used to validate peer tokens")
	flagSet.StringVar(&stateDB, "state-db", "", "optional SQLite path for task persistence across restarts (changes nothing about matching order)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if issuerURL == "" {
		return fmt.Errorf("hokipoki-relay: --issuer or HOKIPOKI_KEYCLOAK_ISSUER is required")
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	server := relay.NewServer(&relay.OIDCAuthenticator{IssuerURL: issuerURL})
	server.Logger = logger

	if stateDB != "" {
		store, err := relay.OpenSQLiteStore(stateDB)
		if err != nil {
			return fmt.Errorf("hokipoki-relay: opening state db: %w", err)
		}
		server.Store = store
	}

	listener, err := relay.Listen(addr, server)
	if err != nil {
		return fmt.Errorf("hokipoki-relay: %w", err)
	}
	logger.Info("relay listening", "addr", addr, "state_db", stateDB != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := listener.Stop(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("hokipoki-relay: shutting down: %w", err)
	}
	return nil
}
