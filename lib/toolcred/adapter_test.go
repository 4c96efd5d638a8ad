// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestRegistry_Authenticate_UnsupportedTool(t *testing.T) {
	r := NewRegistry(t.TempDir())
	_, err := r.Authenticate(t.Context(), "not-a-tool")
	if !errors.Is(err, ErrToolUnsupported) {
		t.Fatalf("got %v, want ErrToolUnsupported", err)
	}
}

func TestRegistry_Authenticate_DispatchesToCodex(t *testing.T) {
	home := t.TempDir()
	writeCodexAuth(t, home, buildTestCodexJWT(t, time.Now().Add(time.Hour).Unix()))

	r := NewRegistry(home)
	cred, err := r.Authenticate(t.Context(), "codex")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if cred.Tool != "codex" {
		t.Errorf("Tool = %q, want codex", cred.Tool)
	}
}

// TestRegistry_ListAuthenticated_NeverInvokesClaudeSubprocess proves that a
// passive listing call never shells out to the claude binary. PATH is
// cleared so any exec.Command("claude", ...) would fail to resolve and
// the call would hang or error if ListAuthenticated mistakenly used
// Authenticate instead of Probe for claude.
func TestRegistry_ListAuthenticated_NeverInvokesClaudeSubprocess(t *testing.T) {
	oldPath := os.Getenv("PATH")
	os.Setenv("PATH", "")
	defer os.Setenv("PATH", oldPath)

	home := t.TempDir()
	writeCodexAuth(t, home, buildTestCodexJWT(t, time.Now().Add(time.Hour).Unix()))
	writeGeminiCreds(t, home, time.Now().Add(time.Hour).UnixMilli())

	r := NewRegistry(home)
	authenticated := r.ListAuthenticated(t.Context())

	found := map[string]bool{}
	for _, tool := range authenticated {
		found[tool] = true
	}
	if !found["codex"] {
		t.Error("expected codex to be reported authenticated")
	}
	if !found["gemini"] {
		t.Error("expected gemini to be reported authenticated")
	}
	if found["claude"] {
		t.Error("claude should never be reported authenticated by Probe alone")
	}
}

func TestRegistry_ListAuthenticated_ExcludesExpiredAndMissing(t *testing.T) {
	home := t.TempDir()
	writeCodexAuth(t, home, buildTestCodexJWT(t, time.Now().Add(-time.Hour).Unix()))

	r := NewRegistry(home)
	authenticated := r.ListAuthenticated(t.Context())
	for _, tool := range authenticated {
		if tool == "codex" {
			t.Error("expired codex credential should not be reported authenticated")
		}
		if tool == "gemini" {
			t.Error("missing gemini credential should not be reported authenticated")
		}
	}
}
