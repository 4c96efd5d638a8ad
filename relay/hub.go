// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type inboundFrame struct {
	conn *connection
	data []byte
}

// Server is the relay hub: it accepts websocket connections (see
// server.go for the HTTP side) and runs a single goroutine, started by
// Run, that owns every peer and task record. All state mutation
// happens on that goroutine; conn.go's reader/writer goroutines
// only ever move bytes and never touch peer/task maps directly.
type Server struct {
	Authenticator Authenticator
	Store         Store
	Logger        *slog.Logger

	inbound    chan inboundFrame
	register   chan *connection
	unregister chan *connection

	peers map[string]*peer       // peerID -> peer, populated after authenticate
	conns map[*connection]string // conn -> peerID ("" until authenticated)
	tasks map[string]*Task
}

// NewServer constructs a Server ready for Run. Authenticator must be
// set by the caller before Run starts accepting connections.
func NewServer(authenticator Authenticator) *Server {
	return &Server{
		Authenticator: authenticator,
		inbound:       make(chan inboundFrame, 256),
		register:      make(chan *connection, 16),
		unregister:    make(chan *connection, 16),
		peers:         make(map[string]*peer),
		conns:         make(map[*connection]string),
		tasks:         make(map[string]*Task),
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run drives the hub loop until ctx is cancelled. It must run in
// exactly one goroutine for the lifetime of the Server.
func (s *Server) Run(ctx context.Context) {
	if s.Store != nil {
		if saved, err := s.Store.LoadTasks(ctx); err != nil {
			s.logger().Warn("relay: loading persisted tasks failed", "error", err)
		} else {
			for _, t := range saved {
				s.tasks[t.ID] = t
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.register:
			s.conns[c] = ""
		case c := <-s.unregister:
			s.handleDisconnect(c)
		case msg := <-s.inbound:
			s.handleFrame(ctx, msg.conn, msg.data)
		}
	}
}

func (s *Server) handleDisconnect(c *connection) {
	peerID, tracked := s.conns[c]
	delete(s.conns, c)
	close(c.send)
	if !tracked || peerID == "" {
		return
	}

	p, ok := s.peers[peerID]
	if !ok {
		return
	}
	delete(s.peers, peerID)

	// An offered-but-not-yet-accepted task assigned to this peer must
	// keep matching; treat the disconnect like an implicit decline.
	if p.role == RoleProvider && p.currentTaskID != "" {
		if t, ok := s.tasks[p.currentTaskID]; ok && t.State == TaskStateOffered {
			t.markDeclined(p.id)
			s.advanceMatching(t)
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, c *connection, data []byte) {
	frameType, err := decodeType(data)
	if err != nil {
		c.ws.Close()
		return
	}

	peerID := s.conns[c]
	if peerID == "" {
		// Unauthenticated connections may only send authenticate.
		if frameType != FrameAuthenticate {
			c.ws.Close()
			return
		}
		s.handleAuthenticate(ctx, c, data)
		return
	}

	p, ok := s.peers[peerID]
	if !ok {
		c.ws.Close()
		return
	}

	switch frameType {
	case FrameRegisterProvider:
		s.handleRegisterProvider(p, data)
	case FrameRegisterRequester:
		s.handleRegisterRequester(p, data)
	case FramePublishTask:
		s.handlePublishTask(ctx, p, data)
	case FrameAcceptTask:
		s.handleAcceptTask(ctx, p, data)
	case FrameDeclineTask:
		s.handleDeclineTask(p, data)
	case FrameP2PRelay:
		s.handleP2PRelay(p, data)
	case FrameCancelTask:
		s.handleCancelTask(p, data)
	case FrameTaskSettled:
		s.handleTaskSettled(p, data)
	default:
		p.conn.sendFrame(ErrorFrame{Type: FrameError, Message: fmt.Sprintf("unrecognized frame type %q", frameType)})
	}
}

func (s *Server) handleAuthenticate(ctx context.Context, c *connection, data []byte) {
	var frame AuthenticateFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.ws.Close()
		return
	}

	result, err := s.Authenticator.Authenticate(ctx, frame.Token)
	if err != nil {
		s.logger().Info("relay: authentication failed", "error", err)
		c.ws.Close()
		return
	}

	peerID, err := generateID("peer")
	if err != nil {
		c.ws.Close()
		return
	}

	p := &peer{id: peerID, userID: result.UserID, conn: c}
	s.peers[peerID] = p
	s.conns[c] = peerID
	c.peerID = peerID

	c.sendFrame(ConnectionConfirmedFrame{Type: FrameConnectionConfirmed, PeerID: peerID})
}

func (s *Server) handleRegisterProvider(p *peer, data []byte) {
	var frame RegisterProviderFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	p.role = RoleProvider
	p.tools = frame.Payload.Tools
	p.workspaceIDs = frame.Payload.WorkspaceIDs
	if frame.Payload.UserID != "" {
		p.userID = frame.Payload.UserID
	}
}

func (s *Server) handleRegisterRequester(p *peer, data []byte) {
	var frame RegisterRequesterFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	p.role = RoleRequester
	p.workspaceID = frame.Payload.WorkspaceID
	if frame.Payload.UserID != "" {
		p.userID = frame.Payload.UserID
	}
}

func (s *Server) handlePublishTask(ctx context.Context, p *peer, data []byte) {
	if p.role != RoleRequester {
		p.conn.sendFrame(ErrorFrame{Type: FrameError, Message: "publish_task requires a registered requester"})
		return
	}
	var frame PublishTaskFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	taskID, err := generateID("task")
	if err != nil {
		return
	}

	task := &Task{
		ID:                taskID,
		RequesterID:       p.id,
		Tool:              frame.Payload.Tool,
		Model:             frame.Payload.Model,
		Task:              frame.Payload.Task,
		Description:       frame.Payload.Description,
		EstimatedDuration: frame.Payload.EstimatedDuration,
		Credits:           frame.Payload.Credits,
		WorkspaceID:       frame.Payload.WorkspaceID,
		State:             TaskStateOpen,
	}
	s.tasks[taskID] = task
	s.persist(ctx, task)

	p.conn.sendFrame(TaskPublishedFrame{Type: FrameTaskPublished, TaskID: taskID})
	s.advanceMatching(task)
}

// advanceMatching offers task to the next eligible provider in
// round-robin order (oldest lastOfferedAt first, providers that have
// already declined this task excluded). If no candidate remains, the
// requester is told no providers are available.
func (s *Server) advanceMatching(task *Task) {
	var candidate *peer
	for _, p := range s.peers {
		if !p.available() {
			continue
		}
		if !p.advertisesTool(task.Tool) || !p.advertisesWorkspace(task.WorkspaceID) {
			continue
		}
		if task.hasDeclined(p.id) {
			continue
		}
		if candidate == nil || p.lastOfferedAt.Before(candidate.lastOfferedAt) {
			candidate = p
		}
	}

	if candidate == nil {
		task.State = TaskStateNoProviders
		if requester, ok := s.peers[task.RequesterID]; ok {
			requester.conn.sendFrame(NoProvidersAvailableFrame{Type: FrameNoProvidersAvailable, Tool: task.Tool, Model: task.Model})
		}
		return
	}

	task.State = TaskStateOffered
	candidate.currentTaskID = task.ID
	candidate.lastOfferedAt = time.Now()
	candidate.conn.sendFrame(NewTaskFrame{Type: FrameNewTask, Task: task.Summary()})
}

func (s *Server) handleAcceptTask(ctx context.Context, p *peer, data []byte) {
	var frame AcceptTaskFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	task, ok := s.tasks[frame.TaskID]
	if !ok || task.State != TaskStateOffered || p.currentTaskID != task.ID {
		return
	}

	task.State = TaskStateMatched
	task.ProviderID = p.id
	s.persist(ctx, task)

	if requester, ok := s.peers[task.RequesterID]; ok {
		requester.conn.sendFrame(TaskMatchedFrame{Type: FrameTaskMatched, TaskID: task.ID, ProviderID: p.id})
	}
	p.conn.sendFrame(TaskAcceptedFrame{Type: FrameTaskAccepted, TaskID: task.ID, RequesterID: task.RequesterID})
}

func (s *Server) handleDeclineTask(p *peer, data []byte) {
	var frame DeclineTaskFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	task, ok := s.tasks[frame.TaskID]
	if !ok || task.State != TaskStateOffered || p.currentTaskID != task.ID {
		return
	}

	task.markDeclined(p.id)
	p.currentTaskID = ""
	s.advanceMatching(task)
}

func (s *Server) handleP2PRelay(p *peer, data []byte) {
	var frame P2PRelayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.From != p.id {
		return
	}

	target, ok := s.peers[frame.To]
	if !ok {
		return
	}
	if !s.matchedPair(frame.From, frame.To) {
		return
	}
	target.conn.sendFrame(frame)
}

// matchedPair reports whether a and b are the two sides of an active
// (matched, not cancelled) task.
func (s *Server) matchedPair(a, b string) bool {
	for _, t := range s.tasks {
		if t.State != TaskStateMatched {
			continue
		}
		if (t.RequesterID == a && t.ProviderID == b) || (t.RequesterID == b && t.ProviderID == a) {
			return true
		}
	}
	return false
}

func (s *Server) handleCancelTask(p *peer, data []byte) {
	var frame CancelTaskFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	task, ok := s.tasks[frame.TaskID]
	if !ok {
		return
	}
	if task.RequesterID != p.id && task.ProviderID != p.id {
		return
	}

	task.State = TaskStateCancelled
	s.releaseProvider(task)

	var counterpartID string
	if task.RequesterID == p.id {
		counterpartID = task.ProviderID
	} else {
		counterpartID = task.RequesterID
	}
	if counterpart, ok := s.peers[counterpartID]; ok {
		counterpart.conn.sendFrame(TaskCancelledFrame{Type: FrameTaskCancelled, TaskID: task.ID, Reason: frame.Reason})
	}
}

// handleTaskSettled is the non-opaque signal that frees a matched
// provider for the next offer. Completion and failure detail travel
// inside the opaque p2p_relay payload the relay never inspects, so the
// provider sends this once its local copy of the task has reached a
// terminal state (the requester acknowledged completion, or the
// provider already reported failure and the requester cancelled in
// response). Only the matched provider may settle its own task.
func (s *Server) handleTaskSettled(p *peer, data []byte) {
	var frame TaskSettledFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	task, ok := s.tasks[frame.TaskID]
	if !ok || task.State != TaskStateMatched || task.ProviderID != p.id {
		return
	}

	task.State = TaskStateCompleted
	s.releaseProvider(task)
}

// releaseProvider clears the matched provider's currentTaskID so
// advanceMatching can offer it the next task. A no-op unless task was
// actually matched to a still-connected provider.
func (s *Server) releaseProvider(task *Task) {
	if task.ProviderID == "" {
		return
	}
	if provider, ok := s.peers[task.ProviderID]; ok && provider.currentTaskID == task.ID {
		provider.currentTaskID = ""
	}
}

func (s *Server) persist(ctx context.Context, task *Task) {
	if s.Store == nil {
		return
	}
	if err := s.Store.SaveTask(ctx, task); err != nil {
		s.logger().Warn("relay: persisting task failed", "task", task.ID, "error", err)
	}
}

func generateID(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("relay: generating id: %w", err)
	}
	return prefix + "_" + id.String(), nil
}
