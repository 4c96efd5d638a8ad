// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/hokipoki/hokipoki/backend"
	"github.com/hokipoki/hokipoki/internal/app"
	"github.com/hokipoki/hokipoki/lib/toolcred"
	"github.com/hokipoki/hokipoki/lib/tunnel"
	"github.com/hokipoki/hokipoki/p2p"
	"github.com/hokipoki/hokipoki/relay"
	"github.com/hokipoki/hokipoki/sandbox"
	"github.com/hokipoki/hokipoki/transport"
)

const defaultRelayURL = "ws://localhost:8787"
const defaultSandboxImage = "hokipoki/sandbox:latest"

func runListen(ctx context.Context, args []string, logger *slog.Logger) error {
	var toolsFlag, workspaceFlag, relayURL string
	var autoAccept bool

	flagSet := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	flagSet.StringVar(&toolsFlag, "tools", "", "comma-separated list of AI CLIs this provider offers")
	flagSet.StringVar(&workspaceFlag, "workspace", "", "comma-separated list of workspace IDs this provider serves")
	flagSet.StringVar(&relayURL, "relay", relayURLFromEnv(), "relay websocket URL")
	flagSet.BoolVar(&autoAccept, "auto-accept", false, "accept every offered task without prompting (non-interactive policy)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	tools := splitTools(toolsFlag)
	workspaces := splitTools(workspaceFlag)
	if len(tools) == 0 {
		return fmt.Errorf("hokipoki-provider listen: --tools is required")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	session := app.NewSession(cfg, logger)

	token, err := session.EnsureToken(ctx)
	if err != nil {
		return err
	}
	backendClient := session.Backend(token)

	profile, err := backendClient.Profile(ctx)
	if err != nil {
		return fmt.Errorf("hokipoki-provider listen: fetching profile: %w", err)
	}
	if len(workspaces) == 0 && profile.WorkspaceID != "" {
		workspaces = []string{profile.WorkspaceID}
	}

	credStore := &toolcred.Store{Vault: session.Vault}
	for _, tool := range tools {
		if _, ok := credStore.Get(tool); !ok {
			return fmt.Errorf("hokipoki-provider listen: no persisted credential for %q; run `register` first", tool)
		}
	}

	conn, err := relay.Dial(ctx, relayURL, token)
	if err != nil {
		return fmt.Errorf("hokipoki-provider listen: %w", err)
	}
	defer conn.Close()

	signaler := tunnel.NewRelaySignaler(conn)
	session.Tunnel.Fallback = &tunnel.WebRTCFallback{
		Signaler:  signaler,
		Localpart: conn.PeerID,
		ICEConfig: transport.ICEConfig{},
		Logger:    logger,
	}

	if err := conn.Send(relay.RegisterProviderFrame{
		Type: relay.FrameRegisterProvider,
		Payload: relay.RegisterProviderInput{
			Tools:        tools,
			WorkspaceIDs: workspaces,
			UserID:       profile.ID,
			Token:        token,
		},
	}); err != nil {
		return fmt.Errorf("hokipoki-provider listen: registering: %w", err)
	}

	capabilities := sandbox.DetectCapabilities()
	if !capabilities.CanRunSandbox() {
		logger.Warn("sandbox prerequisites missing, tasks will fail at execution time", "reason", capabilities.SkipReason())
	}

	image := os.Getenv("HOKIPOKI_SANDBOX_IMAGE")
	if image == "" {
		image = defaultSandboxImage
	}
	executor := &sandbox.Executor{
		Image:      image,
		Runtime:    capabilities.ContainerRuntimePath,
		TunnelHost: tunnelHostMapping(cfg),
		Resources:  sandbox.DefaultResources(),
		Logger:     logger,
	}

	loop := &providerLoop{
		conn:       conn,
		peerID:     conn.PeerID,
		backend:    backendClient,
		credStore:  credStore,
		executor:   executor,
		autoAccept: autoAccept,
		signaler:   signaler,
		logger:     logger,
	}
	logger.Info("provider listening", "peer_id", conn.PeerID, "tools", tools, "auto_accept", autoAccept)
	return loop.run(ctx)
}

func relayURLFromEnv() string {
	if url := os.Getenv("HOKIPOKI_RELAY_URL"); url != "" {
		return url
	}
	return defaultRelayURL
}

// tunnelHostMapping maps the requester's tunnel subdomain host to the
// host gateway address inside the container's /etc/hosts, per §4.6.
// Left empty when FRP_TUNNEL_DOMAIN is unset: the container then relies
// on whatever DNS it already has, which is fine for the WebRTC fallback
// path where no public hostname needs host-gateway resolution.
func tunnelHostMapping(cfg *app.Config) string {
	if cfg.FRPDomain == "" {
		return ""
	}
	return cfg.FRPDomain + ":host-gateway"
}

// inboundFrame is what the reader goroutine pushes to the event loop.
type inboundFrame struct {
	frameType string
	raw       []byte
	err       error
}

// sandboxResult is what the sandbox-running goroutine pushes back once
// a task's container exits.
type sandboxResult struct {
	taskID string
	result *sandbox.Result
	err    error
}

// activeTask tracks the one task this provider may be running at a
// time (a provider is never offered a second task before the current
// one reaches a terminal state, per §4.7's tie-break rule).
type activeTask struct {
	taskID      string
	requesterID string
	tool        string
	cancelled   bool
}

type providerLoop struct {
	conn       *relay.Client
	peerID     string
	backend    *backend.Client
	credStore  *toolcred.Store
	executor   *sandbox.Executor
	autoAccept bool
	signaler   *tunnel.RelaySignaler
	logger     *slog.Logger

	current *activeTask
}

func (l *providerLoop) run(ctx context.Context) error {
	inbound := make(chan inboundFrame, 8)
	go func() {
		for {
			frameType, raw, err := l.conn.Recv()
			inbound <- inboundFrame{frameType, raw, err}
			if err != nil {
				return
			}
		}
	}()

	results := make(chan sandboxResult, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-inbound:
			if frame.err != nil {
				l.logger.Info("relay connection closed", "error", frame.err)
				return nil
			}
			if err := l.handleFrame(ctx, frame.frameType, frame.raw, results); err != nil {
				l.logger.Error("handling relay frame failed", "type", frame.frameType, "error", err)
			}
		case res := <-results:
			l.handleSandboxResult(ctx, res)
		}
	}
}

func (l *providerLoop) handleFrame(ctx context.Context, frameType string, raw []byte, results chan<- sandboxResult) error {
	switch frameType {
	case relay.FrameNewTask:
		return l.handleNewTask(raw)
	case relay.FrameTaskAccepted:
		return l.handleTaskAccepted(raw)
	case relay.FrameP2PRelay:
		return l.handleP2PRelay(ctx, raw, results)
	case relay.FrameTaskCancelled:
		return l.handleTaskCancelled(ctx, raw)
	case relay.FrameError:
		var errFrame relay.ErrorFrame
		if err := json.Unmarshal(raw, &errFrame); err == nil {
			l.logger.Warn("relay reported an error", "message", errFrame.Message)
		}
		return nil
	default:
		l.logger.Debug("ignoring frame", "type", frameType)
		return nil
	}
}

func (l *providerLoop) handleNewTask(raw []byte) error {
	if l.current != nil {
		// Should not happen: the relay only offers a new task once the
		// previous one reaches a terminal state.
		l.logger.Warn("received new_task while a task is active, declining")
		var frame relay.NewTaskFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return err
		}
		return l.conn.Send(relay.DeclineTaskFrame{Type: relay.FrameDeclineTask, TaskID: frame.Task.TaskID})
	}

	var frame relay.NewTaskFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("decoding new_task: %w", err)
	}

	if _, ok := l.credStore.Get(frame.Task.Tool); !ok {
		l.logger.Info("declining task: no credential for tool", "tool", frame.Task.Tool)
		return l.conn.Send(relay.DeclineTaskFrame{Type: relay.FrameDeclineTask, TaskID: frame.Task.TaskID})
	}

	accept := l.autoAccept || l.promptAccept(frame.Task)
	if !accept {
		return l.conn.Send(relay.DeclineTaskFrame{Type: relay.FrameDeclineTask, TaskID: frame.Task.TaskID})
	}

	l.current = &activeTask{taskID: frame.Task.TaskID, tool: frame.Task.Tool}
	return l.conn.Send(relay.AcceptTaskFrame{Type: relay.FrameAcceptTask, TaskID: frame.Task.TaskID})
}

// promptAccept asks the operator whether to accept an offered task
// when running interactively; non-interactive sessions fall back to
// declining unless --auto-accept is set.
func (l *providerLoop) promptAccept(task relay.TaskSummary) bool {
	if !isInteractive() {
		return false
	}
	fmt.Printf("New task %s (%s): %s\nAccept? [y/N] ", task.TaskID, task.Tool, task.Description)
	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func (l *providerLoop) handleTaskAccepted(raw []byte) error {
	var frame relay.TaskAcceptedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("decoding task_accepted: %w", err)
	}
	if l.current == nil || l.current.taskID != frame.TaskID {
		return fmt.Errorf("task_accepted for unknown task %q", frame.TaskID)
	}
	l.current.requesterID = frame.RequesterID
	l.logger.Info("task accepted, awaiting git credentials", "task_id", frame.TaskID, "requester", frame.RequesterID)
	return nil
}

func (l *providerLoop) handleP2PRelay(ctx context.Context, raw []byte, results chan<- sandboxResult) error {
	var frame relay.P2PRelayFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("decoding p2p_relay: %w", err)
	}

	switch frame.Payload.Type {
	case p2p.TypeGitCredentials:
		return l.handleGitCredentials(ctx, frame, results)
	case p2p.TypeConfirmation:
		return l.handleConfirmation(frame)
	case p2p.TypeWebRTCOffer:
		var offer p2p.WebRTCOffer
		if err := p2p.Unwrap(frame.Payload, &offer); err != nil {
			return err
		}
		l.signaler.IngestOffer(offer)
		return nil
	case p2p.TypeWebRTCAnswer:
		var answer p2p.WebRTCAnswer
		if err := p2p.Unwrap(frame.Payload, &answer); err != nil {
			return err
		}
		l.signaler.IngestAnswer(answer)
		return nil
	default:
		l.logger.Debug("ignoring p2p payload", "type", frame.Payload.Type)
		return nil
	}
}

func (l *providerLoop) handleGitCredentials(ctx context.Context, frame relay.P2PRelayFrame, results chan<- sandboxResult) error {
	if l.current == nil {
		return fmt.Errorf("git_credentials received with no active task")
	}
	var creds p2p.GitCredentials
	if err := p2p.Unwrap(frame.Payload, &creds); err != nil {
		return err
	}

	cred, ok := l.credStore.Get(creds.Tool)
	if !ok {
		return l.failTask(ctx, l.current.taskID, frame.From, fmt.Sprintf("no credential for tool %q", creds.Tool), false)
	}

	task := sandbox.Task{
		TaskID:      l.current.taskID,
		GitURL:      creds.GitURL,
		GitToken:    creds.GitToken,
		Tool:        creds.Tool,
		Model:       creds.Model,
		Description: creds.TaskDescription,
		OAuthToken:  cred.OpaqueBlob,
	}

	taskID := l.current.taskID
	go func() {
		result, err := l.executor.Run(ctx, task)
		results <- sandboxResult{taskID: taskID, result: result, err: err}
	}()
	return nil
}

func (l *providerLoop) handleConfirmation(frame relay.P2PRelayFrame) error {
	var confirmation p2p.Confirmation
	if err := p2p.Unwrap(frame.Payload, &confirmation); err != nil {
		return err
	}
	ack, err := p2p.Wrap(l.peerID, frame.From, p2p.TypeConfirmAck, p2p.ConfirmationAck{TaskID: confirmation.TaskID})
	if err != nil {
		return err
	}
	if err := l.conn.Send(ack); err != nil {
		return err
	}
	if err := l.conn.Send(relay.TaskSettledFrame{Type: relay.FrameTaskSettled, TaskID: confirmation.TaskID}); err != nil {
		l.logger.Warn("sending task_settled failed", "task_id", confirmation.TaskID, "error", err)
	}
	l.logger.Info("confirmation acknowledged", "task_id", confirmation.TaskID, "accepted", confirmation.Accepted)
	l.current = nil
	return nil
}

func (l *providerLoop) handleTaskCancelled(ctx context.Context, raw []byte) error {
	var frame relay.TaskCancelledFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("decoding task_cancelled: %w", err)
	}
	if l.current == nil || l.current.taskID != frame.TaskID {
		return nil
	}
	l.current.cancelled = true
	l.executor.Kill(frame.TaskID)
	if err := l.backend.CancelTask(ctx, frame.TaskID); err != nil {
		l.logger.Warn("marking task cancelled on backend failed", "task_id", frame.TaskID, "error", err)
	}
	l.logger.Info("task cancelled", "task_id", frame.TaskID, "reason", frame.Reason)
	l.current = nil
	return nil
}

func (l *providerLoop) handleSandboxResult(ctx context.Context, res sandboxResult) {
	if l.current == nil || l.current.taskID != res.taskID {
		// The task was already cancelled or superseded; the result is stale.
		return
	}
	if l.current.cancelled {
		return
	}

	requesterID := l.current.requesterID
	if res.err != nil {
		reauth := res.result != nil && res.result.ReauthRequired
		if err := l.failTask(ctx, res.taskID, requesterID, res.err.Error(), reauth); err != nil {
			l.logger.Error("reporting execution_failed failed", "error", err)
		}
		return
	}

	complete, err := p2p.Wrap(l.peerID, requesterID, p2p.TypeExecutionDone, p2p.ExecutionComplete{
		TaskID:        res.taskID,
		CommitMessage: res.result.CommitMessage,
	})
	if err != nil {
		l.logger.Error("building execution_complete failed", "error", err)
		return
	}
	if err := l.conn.Send(complete); err != nil {
		l.logger.Error("sending execution_complete failed", "error", err)
	}
	l.logger.Info("execution complete", "task_id", res.taskID)
}

func (l *providerLoop) failTask(ctx context.Context, taskID, requesterID, reason string, reauthRequired bool) error {
	failed, err := p2p.Wrap(l.peerID, requesterID, p2p.TypeExecutionFail, p2p.ExecutionFailed{
		TaskID:         taskID,
		Reason:         reason,
		ReauthRequired: reauthRequired,
	})
	if err != nil {
		return err
	}
	if err := l.conn.Send(failed); err != nil {
		return err
	}
	if err := l.backend.CancelTask(ctx, taskID); err != nil {
		l.logger.Warn("marking failed task on backend failed", "task_id", taskID, "error", err)
	}
	l.current = nil
	return nil
}
