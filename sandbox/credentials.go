// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hokipoki/hokipoki/lib/credcodec"
)

// DoubleEncode and DoubleDecode are the sandbox-local names for the
// shared double-encoding convention (§9 "Credential double-encoding"):
// both the Tool-Credential Adapter (producing ToolCredential.opaqueBlob)
// and this package (consuming it inside the sandbox) go through
// lib/credcodec so there is exactly one implementation of the convention.
func DoubleEncode(nativeDocument []byte) (string, error) {
	return credcodec.Encode(nativeDocument)
}

func DoubleDecode(opaqueBlob string) ([]byte, error) {
	return credcodec.Decode(opaqueBlob)
}

// InjectCredentials materializes the requester-provided tool credential
// inside the container's home directory, in the exact layout each AI
// CLI's native tooling expects, and returns the environment variables
// the CLI invocation additionally needs (e.g. an OAuth token exported
// directly, for tools that read it from the environment rather than a
// file).
func InjectCredentials(tool, oauthToken, homeDir string) (map[string]string, error) {
	switch tool {
	case "claude":
		return injectClaudeCredentials(oauthToken, homeDir)
	case "codex":
		return injectCodexCredentials(oauthToken, homeDir)
	case "gemini":
		return injectGeminiCredentials(oauthToken, homeDir)
	default:
		return nil, fmt.Errorf("sandbox: unsupported tool %q", tool)
	}
}

func injectClaudeCredentials(oauthToken, homeDir string) (map[string]string, error) {
	configDir := filepath.Join(homeDir, ".claude-config")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating claude config dir: %w", err)
	}

	config := map[string]any{"acceptEditsModeAccepted": true}
	payload, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling claude config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ".claude.json"), payload, 0600); err != nil {
		return nil, fmt.Errorf("writing claude config: %w", err)
	}

	// oauthToken here is the raw token string, not a double-encoded
	// document — Claude Code takes its OAuth token directly via env var.
	return map[string]string{"CLAUDE_CODE_OAUTH_TOKEN": oauthToken}, nil
}

func injectCodexCredentials(opaqueBlob, homeDir string) (map[string]string, error) {
	nativeDocument, err := DoubleDecode(opaqueBlob)
	if err != nil {
		return nil, err
	}

	var tokens map[string]any
	if err := json.Unmarshal(nativeDocument, &tokens); err != nil {
		return nil, fmt.Errorf("parsing codex credential document: %w", err)
	}

	authDoc := map[string]any{
		"OPENAI_API_KEY": nil,
		"tokens":         tokens,
		"last_refresh":   time.Now().UTC().Format(time.RFC3339),
	}
	authPayload, err := json.MarshalIndent(authDoc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling codex auth.json: %w", err)
	}

	codexDir := filepath.Join(homeDir, ".codex")
	if err := os.MkdirAll(codexDir, 0700); err != nil {
		return nil, fmt.Errorf("creating codex dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(codexDir, "auth.json"), authPayload, 0600); err != nil {
		return nil, fmt.Errorf("writing codex auth.json: %w", err)
	}

	const minimalConfigTOML = "# generated by hokipoki sandbox\n"
	if err := os.WriteFile(filepath.Join(codexDir, "config.toml"), []byte(minimalConfigTOML), 0600); err != nil {
		return nil, fmt.Errorf("writing codex config.toml: %w", err)
	}

	return nil, nil
}

func injectGeminiCredentials(opaqueBlob, homeDir string) (map[string]string, error) {
	nativeDocument, err := DoubleDecode(opaqueBlob)
	if err != nil {
		return nil, err
	}

	geminiDir := filepath.Join(homeDir, ".gemini")
	if err := os.MkdirAll(geminiDir, 0700); err != nil {
		return nil, fmt.Errorf("creating gemini dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(geminiDir, "oauth_creds.json"), nativeDocument, 0600); err != nil {
		return nil, fmt.Errorf("writing gemini oauth_creds.json: %w", err)
	}

	settings := map[string]any{"selectedAuthType": "oauth-personal"}
	settingsPayload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling gemini settings.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(geminiDir, "settings.json"), settingsPayload, 0600); err != nil {
		return nil, fmt.Errorf("writing gemini settings.json: %w", err)
	}

	return nil, nil
}

// GitCredentialHelperScript returns the contents of a git credential
// helper that emits the fixed username=<token>/password=x-oauth-basic
// pair for any URL, matching the Ephemeral Git Server's Basic-auth
// convention (§4.5). It is written to a per-request file and shredded
// on teardown.
func GitCredentialHelperScript(gitToken string) string {
	return fmt.Sprintf("#!/bin/sh\necho username=%s\necho password=x-oauth-basic\n", gitToken)
}
