// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func buildTestCodexJWT(t *testing.T, exp int64) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	claims, err := json.Marshal(struct {
		Exp int64 `json:"exp"`
	}{Exp: exp})
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return header + "." + payload + "."
}

func writeCodexAuth(t *testing.T, homeDir string, idToken string) {
	t.Helper()
	dir := filepath.Join(homeDir, ".codex")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := map[string]any{
		"tokens": map[string]any{"id_token": idToken},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal auth.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), raw, 0600); err != nil {
		t.Fatalf("write auth.json: %v", err)
	}
}

func TestCodexStrategy_Authenticate_Valid(t *testing.T) {
	home := t.TempDir()
	writeCodexAuth(t, home, buildTestCodexJWT(t, time.Now().Add(time.Hour).Unix()))

	s := &codexStrategy{homeDir: home}
	cred, err := s.Authenticate(t.Context())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if cred.Tool != "codex" {
		t.Errorf("Tool = %q, want codex", cred.Tool)
	}
	if cred.OpaqueBlob == "" {
		t.Error("OpaqueBlob should not be empty")
	}
}

func TestCodexStrategy_Authenticate_Expired(t *testing.T) {
	home := t.TempDir()
	writeCodexAuth(t, home, buildTestCodexJWT(t, time.Now().Add(-time.Hour).Unix()))

	s := &codexStrategy{homeDir: home}
	if _, err := s.Authenticate(t.Context()); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestCodexStrategy_Authenticate_MissingFile(t *testing.T) {
	s := &codexStrategy{homeDir: t.TempDir()}
	if _, err := s.Authenticate(t.Context()); err == nil {
		t.Fatal("expected error for missing auth.json")
	}
}

func TestCodexStrategy_Probe_MirrorsAuthenticate(t *testing.T) {
	home := t.TempDir()
	writeCodexAuth(t, home, buildTestCodexJWT(t, time.Now().Add(time.Hour).Unix()))

	s := &codexStrategy{homeDir: home}
	cred, ok := s.Probe(t.Context())
	if !ok {
		t.Fatal("Probe should succeed for a valid, unexpired auth.json")
	}
	if !s.IsFresh(cred) {
		t.Error("credential returned by Probe should be fresh")
	}
}

func TestCodexStrategy_Probe_MissingFileIsFalseNotError(t *testing.T) {
	s := &codexStrategy{homeDir: t.TempDir()}
	cred, ok := s.Probe(t.Context())
	if ok || cred != nil {
		t.Fatal("Probe should report ok=false, nil credential when auth.json is absent")
	}
}
