// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "encoding/json"

// Frame types, one per {type, ...} shape in the relay protocol.
const (
	FrameAuthenticate         = "authenticate"
	FrameConnectionConfirmed  = "connection_confirmed"
	FrameRegisterProvider     = "register_provider"
	FrameRegisterRequester    = "register_requester"
	FramePublishTask          = "publish_task"
	FrameTaskPublished        = "task_published"
	FrameNewTask              = "new_task"
	FrameAcceptTask           = "accept_task"
	FrameDeclineTask          = "decline_task"
	FrameTaskMatched          = "task_matched"
	FrameTaskAccepted         = "task_accepted"
	FrameNoProvidersAvailable = "no_providers_available"
	FrameP2PRelay             = "p2p_relay"
	FrameCancelTask           = "cancel_task"
	FrameTaskCancelled        = "task_cancelled"
	FrameTaskSettled          = "task_settled"
	FrameError                = "error"
)

// envelope is the only field every frame is guaranteed to carry. Every
// inbound frame is first decoded as an envelope to dispatch on Type,
// then re-decoded into its concrete shape.
type envelope struct {
	Type string `json:"type"`
}

func decodeType(raw []byte) (string, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", err
	}
	return e.Type, nil
}

func marshalFrame(frame any) ([]byte, error) {
	return json.Marshal(frame)
}

// AuthenticateFrame is the mandatory first frame from any peer.
type AuthenticateFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ConnectionConfirmedFrame is the relay's reply to a valid authenticate frame.
type ConnectionConfirmedFrame struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
}

// RegisterProviderFrame installs a provider record for the peer.
type RegisterProviderFrame struct {
	Type    string                `json:"type"`
	Payload RegisterProviderInput `json:"payload"`
}

type RegisterProviderInput struct {
	Tools        []string `json:"tools"`
	WorkspaceIDs []string `json:"workspaceIds"`
	UserID       string   `json:"userId"`
	Token        string   `json:"token"`
}

// RegisterRequesterFrame marks the peer as a requester.
type RegisterRequesterFrame struct {
	Type    string                 `json:"type"`
	Payload RegisterRequesterInput `json:"payload"`
}

type RegisterRequesterInput struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
}

// PublishTaskFrame requests matching for a new task.
type PublishTaskFrame struct {
	Type    string           `json:"type"`
	Payload PublishTaskInput `json:"payload"`
}

type PublishTaskInput struct {
	Tool              string  `json:"tool"`
	Model             string  `json:"model,omitempty"`
	Task              string  `json:"task"`
	Description       string  `json:"description"`
	EstimatedDuration int     `json:"estimatedDuration"`
	Credits           float64 `json:"credits"`
	WorkspaceID       string  `json:"workspaceId"`
}

// TaskPublishedFrame acknowledges PublishTaskFrame with the assigned ID.
type TaskPublishedFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}

// NewTaskFrame offers a task to a candidate provider.
type NewTaskFrame struct {
	Type string      `json:"type"`
	Task TaskSummary `json:"task"`
}

// TaskSummary is what a provider sees when offered a task.
type TaskSummary struct {
	TaskID            string  `json:"taskId"`
	Tool              string  `json:"tool"`
	Model             string  `json:"model,omitempty"`
	Task              string  `json:"task"`
	Description       string  `json:"description"`
	EstimatedDuration int     `json:"estimatedDuration"`
	Credits           float64 `json:"credits"`
}

// AcceptTaskFrame / DeclineTaskFrame are a provider's response to NewTaskFrame.
type AcceptTaskFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}

type DeclineTaskFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}

// TaskMatchedFrame notifies the requester of the accepting provider.
type TaskMatchedFrame struct {
	Type       string `json:"type"`
	TaskID     string `json:"taskId"`
	ProviderID string `json:"providerId"`
}

// TaskAcceptedFrame notifies the provider that its acceptance was recorded.
type TaskAcceptedFrame struct {
	Type        string `json:"type"`
	TaskID      string `json:"taskId"`
	RequesterID string `json:"requesterId"`
}

// NoProvidersAvailableFrame tells the requester matching exhausted every candidate.
type NoProvidersAvailableFrame struct {
	Type  string `json:"type"`
	Tool  string `json:"tool"`
	Model string `json:"model,omitempty"`
}

// P2PRelayFrame carries an opaque payload between two matched peers.
// The relay never inspects Payload.Type; it forwards verbatim.
type P2PRelayFrame struct {
	Type    string     `json:"type"`
	From    string     `json:"from"`
	To      string     `json:"to"`
	Payload P2PPayload `json:"payload"`
}

type P2PPayload struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// CancelTaskFrame / TaskCancelledFrame implement task cancellation.
type CancelTaskFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
	Reason string `json:"reason,omitempty"`
}

type TaskCancelledFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
	Reason string `json:"reason,omitempty"`
}

// TaskSettledFrame is sent by the provider once a matched task has
// reached a terminal state on its side (the requester acknowledged
// completion). Completion and failure detail travel only inside the
// opaque p2p_relay payload, so this frame is the one non-opaque signal
// the relay gets to release the provider's currentTaskID for the next
// offer.
type TaskSettledFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}

// ErrorFrame is sent when the relay rejects a frame it otherwise
// understood (e.g. registering before authenticating).
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
