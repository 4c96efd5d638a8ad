// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hokierr

import "errors"

// Sentinels for the error kinds that have no existing home in a
// lower-level package. EmailUnverified, ReauthRequired, and
// ToolUnsupported already exist as identity.ErrEmailUnverified,
// identity.ErrReauthenticate / toolcred.ErrReauthRequired, and
// toolcred.ErrToolUnsupported; ClassifyKind recognizes those via
// errors.Is instead of duplicating them here.
var (
	ErrAuthRequired      = errors.New("hokierr: authentication required")
	ErrNetworkTransient  = errors.New("hokierr: transient network failure")
	ErrToolUnregistered  = errors.New("hokierr: tool is not registered")
	ErrActiveTaskExists  = errors.New("hokierr: an active task already exists")
	ErrMatchingExhausted = errors.New("hokierr: no providers available")
	ErrSandboxFailure    = errors.New("hokierr: sandbox execution failed")
	ErrPatchConflict     = errors.New("hokierr: patch did not apply cleanly")
	ErrP2PRelayDrop      = errors.New("hokierr: peer disconnected during an active task")
)
