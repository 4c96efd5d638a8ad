// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hokipoki is the requester-side peer: it publishes a task to the
// relay, waits for a provider match, hands off the task's code over an
// ephemeral git server, and applies the resulting patch.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/hokipoki/hokipoki/internal/app"
	"github.com/hokipoki/hokipoki/lib/tunnel"
	"github.com/hokipoki/hokipoki/relay"
)

const defaultRelayURL = "ws://localhost:8787"
const defaultEstimatedSeconds = 600
const defaultCredits = 2.5

func main() {
	os.Exit(run())
}

func run() int {
	var toolFlag, modelFlag, taskFlag, descriptionFlag, workspaceFlag string
	var noAutoApply bool
	var credits float64

	flagSet := pflag.NewFlagSet("hokipoki", pflag.ContinueOnError)
	flagSet.StringVar(&toolFlag, "tool", "", "AI CLI to run the task with (claude, codex, gemini)")
	flagSet.StringVar(&modelFlag, "model", "", "model override passed to the AI CLI")
	flagSet.StringVar(&taskFlag, "task", "", "short task title (defaults to a prefix of --description)")
	flagSet.StringVar(&descriptionFlag, "description", "", "full task description given to the AI CLI")
	flagSet.StringVar(&workspaceFlag, "workspace", "", "workspace ID to publish under (defaults to your profile's default workspace)")
	flagSet.Float64Var(&credits, "credits", defaultCredits, "credits offered for this task")
	flagSet.BoolVar(&noAutoApply, "no-auto-apply", false, "save the resulting patch instead of applying it")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return app.ExitSuccess
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return app.ExitFailure
	}

	if toolFlag == "" || descriptionFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: hokipoki --tool=<claude|codex|gemini> --description=<task> [files...]")
		return app.ExitFailure
	}
	if taskFlag == "" {
		taskFlag = truncateTitle(descriptionFlag, 60)
	}

	debug := os.Getenv("HOKIPOKI_DEBUG") != ""
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return app.ExitFailure
	}
	session := app.NewSession(cfg, logger)

	token, err := session.EnsureToken(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return app.ExitFailure
	}
	backendClient := session.Backend(token)

	profile, err := backendClient.Profile(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: fetching profile: %v\n", err)
		return app.ExitFailure
	}
	if workspaceFlag == "" {
		workspaceFlag = profile.WorkspaceID
	}

	relayURL := os.Getenv("HOKIPOKI_RELAY_URL")
	if relayURL == "" {
		relayURL = defaultRelayURL
	}
	conn, err := relay.Dial(ctx, relayURL, token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return app.ExitFailure
	}
	defer conn.Close()

	signaler := tunnel.NewRelaySignaler(conn)
	session.Tunnel.Fallback = &tunnel.WebRTCFallback{
		Signaler:  signaler,
		Localpart: conn.PeerID,
		Logger:    logger,
	}

	if err := conn.Send(relay.RegisterRequesterFrame{
		Type: relay.FrameRegisterRequester,
		Payload: relay.RegisterRequesterInput{WorkspaceID: workspaceFlag, UserID: profile.ID},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: registering as requester: %v\n", err)
		return app.ExitFailure
	}

	flow := &requesterFlow{
		session:  session,
		backend:  backendClient,
		conn:     conn,
		signaler: signaler,
		logger:   logger,
		opts: publishOptions{
			Tool:          toolFlag,
			Model:         modelFlag,
			Task:          taskFlag,
			Description:   descriptionFlag,
			EstimatedSecs: defaultEstimatedSeconds,
			Credits:       credits,
			Workspace:     workspaceFlag,
			Files:         flagSet.Args(),
			NoAutoApply:   noAutoApply,
		},
	}

	if isInteractive() {
		model := newTUIModel()
		program := tea.NewProgram(model)
		flow.reporter = tuiReporter{program: program}

		exitCode := app.ExitFailure
		done := make(chan struct{})
		go func() {
			defer close(done)
			exitCode = flow.run(ctx)
		}()
		if _, err := program.Run(); err != nil {
			logger.Error("tui exited with error", "error", err)
		}
		<-done
		return exitCode
	}

	flow.reporter = plainReporter{}
	return flow.run(ctx)
}

func truncateTitle(description string, max int) string {
	trimmed := strings.TrimSpace(strings.SplitN(description, "\n", 2)[0])
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max]
}
