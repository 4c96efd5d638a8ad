// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hokipoki/hokipoki/backend"
	"github.com/hokipoki/hokipoki/gitserver"
	"github.com/hokipoki/hokipoki/internal/app"
	"github.com/hokipoki/hokipoki/lib/git"
	"github.com/hokipoki/hokipoki/lib/hokierr"
	"github.com/hokipoki/hokipoki/lib/tunnel"
	"github.com/hokipoki/hokipoki/p2p"
	"github.com/hokipoki/hokipoki/relay"
)

const cancelNetworkTimeout = 3 * time.Second
const confirmationAckTimeout = 5 * time.Second

// publishOptions collects the flags cmd/hokipoki/main.go parses.
type publishOptions struct {
	Tool          string
	Model         string
	Task          string
	Description   string
	EstimatedSecs int
	Credits       float64
	Workspace     string
	Files         []string
	NoAutoApply   bool
}

// errInterrupted is returned internally when the flow's context is
// cancelled (SIGINT) while waiting on a relay frame.
var errInterrupted = fmt.Errorf("interrupted")

type requesterFlow struct {
	session  *app.Session
	backend  *backend.Client
	conn     *relay.Client
	signaler *tunnel.RelaySignaler
	logger   *slog.Logger
	reporter reporter
	opts     publishOptions

	frames chan inboundFrame
}

type inboundFrame struct {
	frameType string
	raw       []byte
	err       error
}

// startReader launches the single goroutine allowed to call
// conn.Recv, feeding every decoded frame onto f.frames so each flow
// phase can select on it alongside ctx.Done() (SIGINT) and timeouts,
// per §5's "long operations communicate via message passing"
// requirement.
func (f *requesterFlow) startReader() {
	f.frames = make(chan inboundFrame, 8)
	go func() {
		for {
			frameType, raw, err := f.conn.Recv()
			f.frames <- inboundFrame{frameType, raw, err}
			if err != nil {
				return
			}
		}
	}()
}

// recv waits for the next frame, honoring ctx cancellation.
func (f *requesterFlow) recv(ctx context.Context) (string, []byte, error) {
	select {
	case <-ctx.Done():
		return "", nil, errInterrupted
	case frame := <-f.frames:
		return frame.frameType, frame.raw, frame.err
	}
}

// run executes the full Requester Flow (§4.8) and returns the process
// exit code.
func (f *requesterFlow) run(ctx context.Context) int {
	f.startReader()

	if err := f.checkNoActiveTask(ctx); err != nil {
		f.reporter.Result(flowResult{FailReason: err.Error()})
		return app.ExitFailure
	}

	files, err := collectInputFiles(f.opts.Files)
	if err != nil {
		f.reporter.Result(flowResult{FailReason: err.Error()})
		return app.ExitFailure
	}

	f.reporter.Phase("publishing task")
	taskID, err := f.publish(ctx)
	if err != nil {
		return f.abort(ctx, "", err)
	}
	f.reporter.Line("task %s published", taskID)

	f.reporter.Phase("waiting for a provider")
	providerID, err := f.awaitMatch(ctx, taskID)
	if err != nil {
		return f.abort(ctx, taskID, err)
	}
	f.reporter.Line("matched with provider %s", providerID)
	_ = f.backend.BindProvider(ctx, taskID, providerID)

	f.reporter.Phase("standing up ephemeral git server")
	gitServer, err := gitserver.NewServer(taskID, f.session.Config.HomeDir, f.session.Tunnel)
	if err != nil {
		return f.abort(ctx, taskID, err)
	}
	gitServer.Logger = f.logger
	if err := gitServer.Initialize(ctx, files); err != nil {
		return f.abort(ctx, taskID, err)
	}
	if err := gitServer.Start(ctx); err != nil {
		return f.abort(ctx, taskID, err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = gitServer.Stop(stopCtx)
	}()

	f.reporter.Phase("sending git credentials")
	cfg := gitServer.GetConfig()
	creds, err := p2p.Wrap(f.conn.PeerID, providerID, p2p.TypeGitCredentials, p2p.GitCredentials{
		GitURL:          cfg.URL,
		GitToken:        cfg.Bearer,
		Tool:            f.opts.Tool,
		Model:           f.opts.Model,
		TaskDescription: f.opts.Description,
	})
	if err != nil {
		return f.abort(ctx, taskID, err)
	}
	if err := f.conn.Send(creds); err != nil {
		return f.abort(ctx, taskID, err)
	}
	_ = f.backend.UpsertTask(ctx, backend.TaskRecord{
		ID: taskID, Tool: f.opts.Tool, Model: f.opts.Model, Description: f.opts.Description,
		Status: "in_progress", Credits: f.opts.Credits, ProviderID: providerID,
	})

	f.reporter.Phase("awaiting execution")
	if err := f.awaitExecution(ctx, taskID); err != nil {
		return f.abort(ctx, taskID, err)
	}

	f.reporter.Phase("fetching diff")
	changes, err := gitServer.GetChanges(ctx)
	if err != nil {
		return f.abort(ctx, taskID, err)
	}

	result := flowResult{TaskID: taskID, Accepted: true, AIReview: changes.AIReview}

	if strings.TrimSpace(changes.CodeChanges) != "" {
		f.reporter.Phase("applying patch")
		patchPath, applied, applyErr := f.applyChanges(ctx, taskID, changes.CodeChanges)
		if applyErr != nil {
			f.reporter.Line("patch retained for manual review: %v", applyErr)
		}
		result.PatchPath = patchPath
		result.Applied = applied
	}

	f.reporter.Phase("confirming completion")
	f.confirm(ctx, taskID, providerID)
	f.recordFinalStatus(taskID, backend.TaskStatusCompleted, changes.AIReview)

	f.reporter.Result(result)
	return app.ExitSuccess
}

// abort cancels taskID (best-effort, both backend and relay), records
// it failed, reports the error, and returns the right exit code —
// 130 if the abort was triggered by SIGINT, 1 otherwise.
func (f *requesterFlow) abort(ctx context.Context, taskID string, cause error) int {
	if taskID != "" {
		f.cancelTask(taskID, "requester error: "+cause.Error())
		f.recordFinalStatus(taskID, backend.TaskStatusFailed, "")
	}
	f.reporter.Result(flowResult{TaskID: taskID, FailReason: cause.Error()})
	if cause == errInterrupted {
		return app.ExitSignal
	}
	return app.ExitFailure
}

func (f *requesterFlow) checkNoActiveTask(ctx context.Context) error {
	active, err := f.backend.ActiveTasks(ctx)
	if err != nil {
		f.logger.Warn("checking active tasks failed, proceeding", "error", err)
		return nil
	}
	if active.HasActiveTasks {
		return fmt.Errorf("%w", hokierr.ErrActiveTaskExists)
	}
	return nil
}

func (f *requesterFlow) publish(ctx context.Context) (string, error) {
	if err := f.conn.Send(relay.PublishTaskFrame{
		Type: relay.FramePublishTask,
		Payload: relay.PublishTaskInput{
			Tool:              f.opts.Tool,
			Model:             f.opts.Model,
			Task:              f.opts.Task,
			Description:       f.opts.Description,
			EstimatedDuration: f.opts.EstimatedSecs,
			Credits:           f.opts.Credits,
			WorkspaceID:       f.opts.Workspace,
		},
	}); err != nil {
		return "", err
	}

	frameType, raw, err := f.recv(ctx)
	if err != nil {
		return "", err
	}
	if frameType != relay.FrameTaskPublished {
		return "", fmt.Errorf("expected task_published, got %q", frameType)
	}
	var published relay.TaskPublishedFrame
	if err := json.Unmarshal(raw, &published); err != nil {
		return "", err
	}
	return published.TaskID, nil
}

func (f *requesterFlow) awaitMatch(ctx context.Context, taskID string) (string, error) {
	for {
		frameType, raw, err := f.recv(ctx)
		if err != nil {
			return "", err
		}
		switch frameType {
		case relay.FrameTaskMatched:
			var matched relay.TaskMatchedFrame
			if err := json.Unmarshal(raw, &matched); err != nil {
				return "", err
			}
			return matched.ProviderID, nil
		case relay.FrameNoProvidersAvailable:
			return "", fmt.Errorf("%w", hokierr.ErrMatchingExhausted)
		default:
			f.logger.Debug("ignoring frame while awaiting match", "type", frameType)
		}
	}
}

// awaitExecution blocks until the provider reports execution_complete
// or execution_failed over the P2P channel, or until the provider
// disconnects (P2PRelayDrop) or the context is cancelled.
func (f *requesterFlow) awaitExecution(ctx context.Context, taskID string) error {
	for {
		frameType, raw, err := f.recv(ctx)
		if err != nil {
			if err == errInterrupted {
				return err
			}
			return fmt.Errorf("%w: %v", hokierr.ErrP2PRelayDrop, err)
		}

		switch frameType {
		case relay.FrameTaskCancelled:
			return fmt.Errorf("%w: task cancelled by provider", hokierr.ErrP2PRelayDrop)
		case relay.FrameP2PRelay:
			var p2pFrame relay.P2PRelayFrame
			if err := json.Unmarshal(raw, &p2pFrame); err != nil {
				continue
			}
			switch p2pFrame.Payload.Type {
			case p2p.TypeExecutionDone:
				var done p2p.ExecutionComplete
				if err := p2p.Unwrap(p2pFrame.Payload, &done); err != nil {
					return err
				}
				return nil
			case p2p.TypeExecutionFail:
				var failed p2p.ExecutionFailed
				if err := p2p.Unwrap(p2pFrame.Payload, &failed); err != nil {
					return err
				}
				reason := failed.Reason
				if failed.ReauthRequired {
					reason = "reauth required: " + reason
				}
				return fmt.Errorf("%w: %s", hokierr.ErrSandboxFailure, reason)
			case p2p.TypeWebRTCOffer:
				var offer p2p.WebRTCOffer
				if err := p2p.Unwrap(p2pFrame.Payload, &offer); err == nil {
					f.signaler.IngestOffer(offer)
				}
			case p2p.TypeWebRTCAnswer:
				var answer p2p.WebRTCAnswer
				if err := p2p.Unwrap(p2pFrame.Payload, &answer); err == nil {
					f.signaler.IngestAnswer(answer)
				}
			}
		default:
			f.logger.Debug("ignoring frame while awaiting execution", "type", frameType, "task", taskID)
		}
	}
}

func (f *requesterFlow) confirm(ctx context.Context, taskID, providerID string) {
	ack, err := p2p.Wrap(f.conn.PeerID, providerID, p2p.TypeConfirmation, p2p.Confirmation{
		TaskID: taskID, Accepted: true, Credits: f.opts.Credits,
	})
	if err != nil {
		f.logger.Warn("encoding confirmation failed", "error", err)
		return
	}
	if err := f.conn.Send(ack); err != nil {
		f.logger.Warn("sending confirmation failed", "error", err)
		return
	}

	deadline := time.NewTimer(confirmationAckTimeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			f.logger.Warn("confirmation_ack timed out, tearing down anyway")
			return
		case frame := <-f.frames:
			if frame.err != nil {
				return
			}
			if frame.frameType != relay.FrameP2PRelay {
				continue
			}
			var p2pFrame relay.P2PRelayFrame
			if err := json.Unmarshal(frame.raw, &p2pFrame); err != nil {
				continue
			}
			if p2pFrame.Payload.Type == p2p.TypeConfirmAck {
				return
			}
		}
	}
}

func (f *requesterFlow) cancelTask(taskID, reason string) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), cancelNetworkTimeout)
	defer cancel()
	_ = f.backend.CancelTask(cancelCtx, taskID)
	_ = f.conn.Send(relay.CancelTaskFrame{Type: relay.FrameCancelTask, TaskID: taskID, Reason: reason})
}

func (f *requesterFlow) recordFinalStatus(taskID, status, summary string) {
	recordCtx, cancel := context.WithTimeout(context.Background(), cancelNetworkTimeout)
	defer cancel()
	_ = f.backend.UpsertTask(recordCtx, backend.TaskRecord{
		ID: taskID, Tool: f.opts.Tool, Model: f.opts.Model, Description: f.opts.Description,
		Status: status, Credits: f.opts.Credits, Summary: summary,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (f *requesterFlow) applyChanges(ctx context.Context, taskID, diff string) (patchPath string, applied bool, err error) {
	patchPath, err = savePatch(taskID, diff, time.Now())
	if err != nil {
		return "", false, err
	}
	if f.opts.NoAutoApply {
		return patchPath, false, nil
	}

	repo := git.NewRepository(".")
	if applyErr := applyPatch(ctx, repo, diff, patchPath); applyErr != nil {
		return patchPath, false, applyErr
	}
	if removeErr := removePatch(patchPath); removeErr != nil {
		f.logger.Warn("removing applied patch file failed", "path", patchPath, "error", removeErr)
	}
	return "", true, nil
}
