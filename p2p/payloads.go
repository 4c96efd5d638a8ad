// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hokipoki/hokipoki/relay"
)

// Payload type names, carried in relay.P2PPayload.Type.
const (
	TypeGitCredentials = "git_credentials"
	TypeExecutionDone  = "execution_complete"
	TypeExecutionFail  = "execution_failed"
	TypeConfirmation   = "confirmation"
	TypeConfirmAck     = "confirmation_ack"
	TypeError          = "error"
	TypeWebRTCOffer    = "webrtc_offer"
	TypeWebRTCAnswer   = "webrtc_answer"
)

// GitCredentials is sent requester→provider once a task is matched: the
// clone URL and bearer for the Ephemeral Git Server, and enough of the
// task to launch the sandboxed AI CLI. The provider supplies its own
// tool credential locally (from its Token Vault); it never travels in
// this payload.
type GitCredentials struct {
	GitURL          string `json:"gitUrl"`
	GitToken        string `json:"gitToken"`
	Tool            string `json:"tool"`
	Model           string `json:"model,omitempty"`
	TaskDescription string `json:"taskDescription"`
}

// ExecutionComplete is sent provider→requester when the sandbox run
// exited zero.
type ExecutionComplete struct {
	TaskID        string `json:"taskId"`
	CommitMessage string `json:"commitMessage,omitempty"`
}

// ExecutionFailed is sent provider→requester when the sandbox run
// failed or the provider could not start it.
type ExecutionFailed struct {
	TaskID         string `json:"taskId"`
	Reason         string `json:"reason"`
	ReauthRequired bool   `json:"reauthRequired,omitempty"`
}

// Confirmation is sent requester→provider after the diff has been
// fetched (and, if possible, applied): it both pays the provider and
// tells it the task is done.
type Confirmation struct {
	TaskID   string  `json:"taskId"`
	Accepted bool    `json:"accepted"`
	Credits  float64 `json:"credits"`
}

// ConfirmationAck is the provider's reply to Confirmation, closing the
// serialized (confirmation, confirmation_ack) pair.
type ConfirmationAck struct {
	TaskID string `json:"taskId"`
}

// WebRTCOffer and WebRTCAnswer carry SDP between peers over the relay
// when lib/tunnel falls back to a direct WebRTC data channel because
// the reverse tunnel could not be provisioned. Localparts here are the
// relay PeerIDs, reused as WebRTC signaling identities so no separate
// naming scheme is needed.
type WebRTCOffer struct {
	FromLocalpart   string `json:"fromLocalpart"`
	TargetLocalpart string `json:"targetLocalpart"`
	SDP             string `json:"sdp"`
}

type WebRTCAnswer struct {
	OffererLocalpart string `json:"offererLocalpart"`
	Localpart        string `json:"localpart"`
	SDP              string `json:"sdp"`
}

// ErrorPayload carries an opaque failure description between peers
// outside the execution lifecycle (e.g. a malformed git_credentials
// payload).
type ErrorPayload struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

// Wrap builds the P2PRelayFrame carrying payload under payloadType,
// from peer "from" to peer "to".
func Wrap(from, to, payloadType string, payload any) (relay.P2PRelayFrame, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return relay.P2PRelayFrame{}, fmt.Errorf("p2p: encoding %s payload: %w", payloadType, err)
	}
	return relay.P2PRelayFrame{
		Type: relay.FrameP2PRelay,
		From: from,
		To:   to,
		Payload: relay.P2PPayload{
			Type:      payloadType,
			Payload:   encoded,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// Unwrap decodes a relay.P2PPayload's inner payload into dest, a
// pointer to one of the structs in this file.
func Unwrap(payload relay.P2PPayload, dest any) error {
	if err := json.Unmarshal(payload.Payload, dest); err != nil {
		return fmt.Errorf("p2p: decoding %s payload: %w", payload.Type, err)
	}
	return nil
}
