// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hokierr

import (
	"fmt"
	"testing"

	"github.com/hokipoki/hokipoki/lib/identity"
	"github.com/hokipoki/hokipoki/lib/toolcred"
)

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"auth required", ErrAuthRequired, KindAuthRequired},
		{"email unverified", identity.ErrEmailUnverified, KindEmailUnverified},
		{"identity reauth", identity.ErrReauthenticate, KindReauthRequired},
		{"toolcred reauth", toolcred.ErrReauthRequired, KindReauthRequired},
		{"network transient", ErrNetworkTransient, KindNetworkTransient},
		{"tool unregistered", ErrToolUnregistered, KindToolUnregistered},
		{"tool unsupported", toolcred.ErrToolUnsupported, KindToolUnsupported},
		{"active task exists", ErrActiveTaskExists, KindActiveTaskExists},
		{"matching exhausted", ErrMatchingExhausted, KindMatchingExhausted},
		{"sandbox failure", ErrSandboxFailure, KindSandboxFailure},
		{"patch conflict", ErrPatchConflict, KindPatchConflict},
		{"p2p relay drop", ErrP2PRelayDrop, KindP2PRelayDrop},
		{"unrelated error", fmt.Errorf("boom"), KindUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyKind(c.err); got != c.want {
				t.Errorf("ClassifyKind(%v) = %q, want %q", c.err, got, c.want)
			}
		})
	}
}

func TestClassifyKind_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("registering provider: %w", toolcred.ErrToolUnsupported)
	if got := ClassifyKind(wrapped); got != KindToolUnsupported {
		t.Errorf("ClassifyKind(wrapped) = %q, want %q", got, KindToolUnsupported)
	}
}

func TestKind_Retryable(t *testing.T) {
	if !KindNetworkTransient.Retryable() {
		t.Error("NetworkTransient should be retryable")
	}
	if KindSandboxFailure.Retryable() {
		t.Error("SandboxFailure should not be retryable")
	}
}
