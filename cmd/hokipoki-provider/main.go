// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hokipoki-provider is the provider-side peer: it registers the AI
// CLIs installed locally with the backend, then listens on the relay
// for offered tasks, running each accepted one inside the encrypted
// sandbox and reporting the result back to the requester.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hokipoki/hokipoki/internal/app"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	debug := os.Getenv("HOKIPOKI_DEBUG") != ""
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "register":
		err = runRegister(ctx, os.Args[2:], logger)
	case "listen":
		err = runListen(ctx, os.Args[2:], logger)
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if exitErr, ok := err.(*app.ExitError); ok {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(app.ExitFailure)
	}
}

func printUsage() {
	fmt.Print(`hokipoki-provider - run tasks for HokiPoki requesters

USAGE
    hokipoki-provider register --tools=claude,codex,gemini
    hokipoki-provider listen --tools=claude,codex --workspace=<id> [--auto-accept]

COMMANDS
    register   acquire and persist credentials for the listed AI CLIs
    listen     accept offered tasks and run them in the sandbox

ENVIRONMENT
    HOKIPOKI_KEYCLOAK_ISSUER, HOKIPOKI_CLIENT_ID, BACKEND_URL
    HOKIPOKI_RELAY_URL   relay websocket URL (default ws://localhost:8787)
    HOKIPOKI_SANDBOX_IMAGE  container image tag (default hokipoki/sandbox:latest)
    HOKIPOKI_DEBUG       enable debug logging
`)
}
