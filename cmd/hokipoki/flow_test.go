// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hokipoki/hokipoki/lib/testutil"
	"github.com/hokipoki/hokipoki/relay"
)

// tokenAuthenticator accepts any token and treats it as the user ID,
// the same test double relay's own hub tests use.
type tokenAuthenticator struct{}

func (tokenAuthenticator) Authenticate(ctx context.Context, token string) (relay.AuthResult, error) {
	return relay.AuthResult{UserID: token}, nil
}

func startTestRelay(t *testing.T) *httptest.Server {
	t.Helper()
	server := relay.NewServer(tokenAuthenticator{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.Run(ctx)

	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)
	return httpServer
}

func dialTestClient(t *testing.T, httpURL, token string) *relay.Client {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http")
	c, err := relay.Dial(t.Context(), wsURL, token)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// discardReporter swallows every call, for tests that only care about
// the relay exchange and not the progress reporting surface.
type discardReporter struct{}

func (discardReporter) Phase(string)           {}
func (discardReporter) Line(string, ...any)    {}
func (discardReporter) Result(res flowResult) {}

func TestRequesterFlow_PublishAndAwaitMatch(t *testing.T) {
	httpServer := startTestRelay(t)

	provider := dialTestClient(t, httpServer.URL, "provider-user")
	if err := provider.Send(relay.RegisterProviderFrame{
		Type: relay.FrameRegisterProvider,
		Payload: relay.RegisterProviderInput{
			Tools:        []string{"claude"},
			WorkspaceIDs: []string{"ws-1"},
		},
	}); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	requesterConn := dialTestClient(t, httpServer.URL, "requester-user")
	if err := requesterConn.Send(relay.RegisterRequesterFrame{
		Type:    relay.FrameRegisterRequester,
		Payload: relay.RegisterRequesterInput{WorkspaceID: "ws-1"},
	}); err != nil {
		t.Fatalf("register requester: %v", err)
	}

	flow := &requesterFlow{
		conn:     requesterConn,
		reporter: discardReporter{},
		opts: publishOptions{
			Tool:        "claude",
			Task:        "add tests",
			Description: "add missing tests",
			Workspace:   "ws-1",
			Credits:     2.5,
		},
	}
	flow.startReader()

	// Drive the provider's side of the match in the background: wait
	// for the offer, accept it.
	go func() {
		frameType, raw, err := provider.Recv()
		if err != nil || frameType != relay.FrameNewTask {
			return
		}
		var offer relay.NewTaskFrame
		if err := json.Unmarshal(raw, &offer); err != nil {
			return
		}
		_ = provider.Send(relay.AcceptTaskFrame{Type: relay.FrameAcceptTask, TaskID: offer.Task.TaskID})
	}()

	type publishResult struct {
		taskID string
		err    error
	}
	publishDone := make(chan publishResult, 1)
	go func() {
		taskID, err := flow.publish(context.Background())
		publishDone <- publishResult{taskID, err}
	}()
	published := testutil.RequireReceive(t, publishDone, 5*time.Second, "waiting for publish")
	if published.err != nil {
		t.Fatalf("publish: %v", published.err)
	}
	if published.taskID == "" {
		t.Fatal("expected a non-empty task id")
	}

	type matchResult struct {
		providerID string
		err        error
	}
	matchDone := make(chan matchResult, 1)
	go func() {
		providerID, err := flow.awaitMatch(context.Background(), published.taskID)
		matchDone <- matchResult{providerID, err}
	}()
	matched := testutil.RequireReceive(t, matchDone, 5*time.Second, "waiting for match")
	if matched.err != nil {
		t.Fatalf("awaitMatch: %v", matched.err)
	}
	if matched.providerID != provider.PeerID {
		t.Fatalf("matched provider = %q, want %q", matched.providerID, provider.PeerID)
	}
}

func TestRequesterFlow_Recv_HonorsContextCancellation(t *testing.T) {
	httpServer := startTestRelay(t)
	requesterConn := dialTestClient(t, httpServer.URL, "requester-user")

	flow := &requesterFlow{conn: requesterConn}
	flow.startReader()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := flow.recv(ctx)
	if err != errInterrupted {
		t.Fatalf("recv after cancel = %v, want errInterrupted", err)
	}
}
