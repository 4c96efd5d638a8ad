// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReauthRequired is returned by Authenticate when a tool's native
// credential source is absent, expired, or otherwise unusable. The
// caller is expected to instruct the operator to run the tool's own
// login command and retry.
var ErrReauthRequired = errors.New("toolcred: reauthentication required")

// ErrToolUnsupported is returned for a tool name with no registered
// strategy.
var ErrToolUnsupported = errors.New("toolcred: unsupported tool")

// ToolCredential is what Authenticate returns: the tool name and an
// opaque, double-encoded blob ready to be carried as a single string
// field over the relay wire and injected into the sandbox.
type ToolCredential struct {
	Tool       string
	OpaqueBlob string
	ExpiresAt  time.Time // zero if the strategy has no fixed expiry
}

// Strategy is the per-tool credential acquisition and freshness
// interface.
//
// Authenticate performs acquisition: for claude this runs the
// interactive `claude setup-token` subprocess; for codex and gemini it
// reads the native credential file the tool's own login command wrote.
// It returns a fresh ToolCredential, or ErrReauthRequired if none is
// available.
//
// Probe is the non-interactive counterpart used by ListAuthenticated:
// it never launches a subprocess or otherwise prompts the operator. For
// file-backed tools (codex, gemini) it reads and freshness-checks the
// native file. For claude, which has no native file to probe, it always
// reports ok=false — "authenticated" for claude is determined by
// whether a previously-Authenticated credential is still within its
// cache lifetime, which is the caller's (Token Vault's) concern, not
// this package's.
//
// IsFresh reports whether a previously-returned credential is still
// usable without re-reading the native source.
type Strategy interface {
	Authenticate(ctx context.Context) (*ToolCredential, error)
	Probe(ctx context.Context) (*ToolCredential, bool)
	IsFresh(cred *ToolCredential) bool
}

// registry maps tool name to its strategy. HomeDir is threaded through
// at construction time (NewRegistry) rather than read from os.UserHomeDir
// inside each strategy, so tests can point every strategy at a temp
// directory.
type registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds the standard claude/codex/gemini registry, each
// strategy reading from native files/subprocess under homeDir.
func NewRegistry(homeDir string) *registry {
	return &registry{
		strategies: map[string]Strategy{
			"claude": &claudeStrategy{},
			"codex":  &codexStrategy{homeDir: homeDir},
			"gemini": &geminiStrategy{homeDir: homeDir},
		},
	}
}

// Authenticate dispatches to the named tool's strategy.
func (r *registry) Authenticate(ctx context.Context, tool string) (*ToolCredential, error) {
	strategy, ok := r.strategies[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolUnsupported, tool)
	}
	return strategy.Authenticate(ctx)
}

// ListAuthenticated returns the tools whose native credential source
// is present and unexpired. It never triggers interactive
// acquisition — see Strategy.Probe.
func (r *registry) ListAuthenticated(ctx context.Context) []string {
	var authenticated []string
	for tool, strategy := range r.strategies {
		cred, ok := strategy.Probe(ctx)
		if !ok {
			continue
		}
		if strategy.IsFresh(cred) {
			authenticated = append(authenticated, tool)
		}
	}
	return authenticated
}
