// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "time"

// Role identifies which side of the marketplace a peer plays once it
// registers. A peer is RoleUnregistered from connection until its
// first register_provider/register_requester frame.
type Role string

const (
	RoleUnregistered Role = ""
	RoleProvider     Role = "provider"
	RoleRequester    Role = "requester"
)

// peer is one authenticated websocket connection, tracked by the hub
// goroutine. Every field here is only ever read or written from the
// hub loop — conn itself owns the actual socket and communicates with
// the hub exclusively through channels.
type peer struct {
	id     string
	userID string
	role   Role
	conn   *connection

	// Provider-only fields.
	tools         []string
	workspaceIDs  []string
	currentTaskID string    // non-empty while offered or matched to a task
	lastOfferedAt time.Time // zero until first offered a task; used for round-robin tie-break
	declined      map[string]bool

	// Requester-only field.
	workspaceID string
}

func (p *peer) advertisesTool(tool string) bool {
	for _, t := range p.tools {
		if t == tool {
			return true
		}
	}
	return false
}

func (p *peer) advertisesWorkspace(workspaceID string) bool {
	for _, w := range p.workspaceIDs {
		if w == workspaceID {
			return true
		}
	}
	return false
}

func (p *peer) available() bool {
	return p.role == RoleProvider && p.currentTaskID == ""
}
