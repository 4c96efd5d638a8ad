// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDoubleEncodeDecodeRoundTrip(t *testing.T) {
	native := []byte(`{"access_token":"abc123","expiry_date":1234567890}`)

	encoded, err := DoubleEncode(native)
	if err != nil {
		t.Fatalf("DoubleEncode: %v", err)
	}

	decoded, err := DoubleDecode(encoded)
	if err != nil {
		t.Fatalf("DoubleDecode: %v", err)
	}

	if string(decoded) != string(native) {
		t.Errorf("round trip = %q, want %q", decoded, native)
	}
}

func TestInjectClaudeCredentials(t *testing.T) {
	home := t.TempDir()

	env, err := InjectCredentials("claude", "sk-ant-oat01-example", home)
	if err != nil {
		t.Fatalf("InjectCredentials: %v", err)
	}
	if env["CLAUDE_CODE_OAUTH_TOKEN"] != "sk-ant-oat01-example" {
		t.Errorf("missing CLAUDE_CODE_OAUTH_TOKEN in returned env: %v", env)
	}

	configPath := filepath.Join(home, ".claude-config", ".claude.json")
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("expected claude config at %s: %v", configPath, err)
	}
}

func TestInjectCodexCredentials(t *testing.T) {
	home := t.TempDir()
	native := []byte(`{"id_token":"x","access_token":"y","refresh_token":"z"}`)
	encoded, err := DoubleEncode(native)
	if err != nil {
		t.Fatalf("DoubleEncode: %v", err)
	}

	if _, err := InjectCredentials("codex", encoded, home); err != nil {
		t.Fatalf("InjectCredentials: %v", err)
	}

	authPath := filepath.Join(home, ".codex", "auth.json")
	if _, err := os.Stat(authPath); err != nil {
		t.Errorf("expected codex auth.json at %s: %v", authPath, err)
	}
	configPath := filepath.Join(home, ".codex", "config.toml")
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("expected codex config.toml at %s: %v", configPath, err)
	}
}

func TestInjectGeminiCredentials(t *testing.T) {
	home := t.TempDir()
	native := []byte(`{"access_token":"y","expiry_date":1234567890}`)
	encoded, err := DoubleEncode(native)
	if err != nil {
		t.Fatalf("DoubleEncode: %v", err)
	}

	if _, err := InjectCredentials("gemini", encoded, home); err != nil {
		t.Fatalf("InjectCredentials: %v", err)
	}

	credsPath := filepath.Join(home, ".gemini", "oauth_creds.json")
	if _, err := os.Stat(credsPath); err != nil {
		t.Errorf("expected gemini oauth_creds.json at %s: %v", credsPath, err)
	}
	settingsPath := filepath.Join(home, ".gemini", "settings.json")
	if _, err := os.Stat(settingsPath); err != nil {
		t.Errorf("expected gemini settings.json at %s: %v", settingsPath, err)
	}
}

func TestInjectCredentials_UnsupportedTool(t *testing.T) {
	if _, err := InjectCredentials("unknown", "blob", t.TempDir()); err == nil {
		t.Error("expected error for unsupported tool")
	}
}
