// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hokipoki/hokipoki/transport"
)

// memorySignaler is a minimal in-process transport.Signaler for tests,
// mirroring the shape the teacher's own in-process signaler tests use.
type memorySignaler struct{}

func (memorySignaler) PublishOffer(ctx context.Context, localpart, targetLocalpart, sdp string) error {
	return errors.New("webrtc signaling not exercised in this test")
}
func (memorySignaler) PublishAnswer(ctx context.Context, offererLocalpart, localpart, sdp string) error {
	return nil
}
func (memorySignaler) PollOffers(ctx context.Context, localpart string) ([]transport.SignalMessage, error) {
	return nil, nil
}
func (memorySignaler) PollAnswers(ctx context.Context, localpart string) ([]transport.SignalMessage, error) {
	return nil, nil
}

func TestWebRTCFallback_PublicURLFormat(t *testing.T) {
	fallback := &WebRTCFallback{
		Signaler:  memorySignaler{},
		Localpart: "requester/session-abc",
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	handle, err := fallback.Open(ctx, 8080, "test-heron-4")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer handle.Close()

	if !strings.HasPrefix(handle.PublicURL, "webrtc:requester/session-abc/") {
		t.Errorf("PublicURL = %q, want webrtc:<localpart>/<subdomain> shape", handle.PublicURL)
	}
}
