// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hokierr

import (
	"errors"

	"github.com/hokipoki/hokipoki/lib/identity"
	"github.com/hokipoki/hokipoki/lib/toolcred"
)

// Kind names one of the error categories spec §7 defines policy for.
type Kind string

const (
	KindAuthRequired      Kind = "AuthRequired"
	KindEmailUnverified   Kind = "EmailUnverified"
	KindReauthRequired    Kind = "ReauthRequired"
	KindNetworkTransient  Kind = "NetworkTransient"
	KindToolUnregistered  Kind = "ToolUnregistered"
	KindToolUnsupported   Kind = "ToolUnsupported"
	KindActiveTaskExists  Kind = "ActiveTaskExists"
	KindMatchingExhausted Kind = "MatchingExhausted"
	KindSandboxFailure    Kind = "SandboxFailure"
	KindPatchConflict     Kind = "PatchConflict"
	KindP2PRelayDrop      Kind = "P2PRelayDrop"
	KindUnknown           Kind = ""
)

// ClassifyKind walks err's chain and reports which named kind it
// belongs to, recognizing both hokierr's own sentinels and the
// sentinels identity/toolcred already define for their narrower
// concerns (reauthentication, email verification).
func ClassifyKind(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, identity.ErrEmailUnverified):
		return KindEmailUnverified
	case errors.Is(err, identity.ErrReauthenticate), errors.Is(err, toolcred.ErrReauthRequired):
		return KindReauthRequired
	case errors.Is(err, ErrNetworkTransient):
		return KindNetworkTransient
	case errors.Is(err, ErrToolUnregistered):
		return KindToolUnregistered
	case errors.Is(err, toolcred.ErrToolUnsupported):
		return KindToolUnsupported
	case errors.Is(err, ErrActiveTaskExists):
		return KindActiveTaskExists
	case errors.Is(err, ErrMatchingExhausted):
		return KindMatchingExhausted
	case errors.Is(err, ErrSandboxFailure):
		return KindSandboxFailure
	case errors.Is(err, ErrPatchConflict):
		return KindPatchConflict
	case errors.Is(err, ErrP2PRelayDrop):
		return KindP2PRelayDrop
	default:
		return KindUnknown
	}
}

// Retryable reports whether policy calls for silently continuing past
// this error kind (NetworkTransient on an advisory call) rather than
// surfacing it to the user.
func (k Kind) Retryable() bool {
	return k == KindNetworkTransient
}
