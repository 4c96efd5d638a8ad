// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"
)

// TURNCredentials holds a TURN username/password pair and the server
// URIs it is valid for. The relay protocol does not carry TURN
// credentials; nothing in this module issues them.
type TURNCredentials struct {
	URIs     []string
	Username string
	Password string
}

// ICEConfig holds ICE server configuration for WebRTC PeerConnections.
// WebRTCTransport.UpdateICEConfig can replace it for new connections;
// nothing in this module refreshes it periodically.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. Order matters: pion tries them in sequence.
	Servers []webrtc.ICEServer
}

// ICEConfigFromTURN converts relay-issued TURNCredentials into an
// ICEConfig suitable for pion/webrtc. When turn is nil, returns a config
// with only host candidates (no STUN, no TURN) — sufficient for
// same-machine and same-LAN testing, and for the common case where the
// reverse tunnel already provides reachability and WebRTC is only used
// as a fallback transport.
func ICEConfigFromTURN(turn *TURNCredentials) ICEConfig {
	if turn == nil || len(turn.URIs) == 0 {
		return ICEConfig{}
	}
	return ICEConfig{
		Servers: []webrtc.ICEServer{
			{
				URLs:       turn.URIs,
				Username:   turn.Username,
				Credential: turn.Password,
			},
		},
	}
}
