// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"sync"
	"time"

	"github.com/hokipoki/hokipoki/p2p"
	"github.com/hokipoki/hokipoki/relay"
	"github.com/hokipoki/hokipoki/transport"
)

// RelaySignaler implements transport.Signaler over an already-connected
// relay.Client, so WebRTCFallback never needs its own signaling
// transport: the same relay session that carries git credentials and
// confirmations also carries SDP offers and answers.
//
// Unlike MemorySignaler, RelaySignaler does not read frames off the
// wire itself — the owning flow (cmd/hokipoki or cmd/hokipoki-provider)
// already runs the one goroutine allowed to call conn.Recv, so it
// decodes webrtc_offer/webrtc_answer frames as they arrive and calls
// IngestOffer/IngestAnswer. PollOffers/PollAnswers drain what has been
// ingested since the caller's last poll.
type RelaySignaler struct {
	conn *relay.Client

	mu      sync.Mutex
	offers  []transport.SignalMessage
	answers []transport.SignalMessage
}

// NewRelaySignaler wraps conn, a relay connection already authenticated
// for this peer.
func NewRelaySignaler(conn *relay.Client) *RelaySignaler {
	return &RelaySignaler{conn: conn}
}

func (s *RelaySignaler) PublishOffer(ctx context.Context, localpart, targetLocalpart, sdp string) error {
	frame, err := p2p.Wrap(localpart, targetLocalpart, p2p.TypeWebRTCOffer, p2p.WebRTCOffer{
		FromLocalpart: localpart, TargetLocalpart: targetLocalpart, SDP: sdp,
	})
	if err != nil {
		return err
	}
	return s.conn.Send(frame)
}

func (s *RelaySignaler) PublishAnswer(ctx context.Context, offererLocalpart, localpart, sdp string) error {
	frame, err := p2p.Wrap(localpart, offererLocalpart, p2p.TypeWebRTCAnswer, p2p.WebRTCAnswer{
		OffererLocalpart: offererLocalpart, Localpart: localpart, SDP: sdp,
	})
	if err != nil {
		return err
	}
	return s.conn.Send(frame)
}

func (s *RelaySignaler) PollOffers(ctx context.Context, localpart string) ([]transport.SignalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.offers
	s.offers = nil
	return drained, nil
}

func (s *RelaySignaler) PollAnswers(ctx context.Context, localpart string) ([]transport.SignalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.answers
	s.answers = nil
	return drained, nil
}

// IngestOffer records an offer decoded from a webrtc_offer p2p_relay
// frame by the caller's own read loop.
func (s *RelaySignaler) IngestOffer(offer p2p.WebRTCOffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, transport.SignalMessage{
		PeerLocalpart: offer.FromLocalpart,
		SDP:           offer.SDP,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// IngestAnswer records an answer decoded from a webrtc_answer p2p_relay
// frame by the caller's own read loop.
func (s *RelaySignaler) IngestAnswer(answer p2p.WebRTCAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, transport.SignalMessage{
		PeerLocalpart: answer.Localpart,
		SDP:           answer.SDP,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
