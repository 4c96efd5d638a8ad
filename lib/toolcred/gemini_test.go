// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeGeminiCreds(t *testing.T, homeDir string, expiryMillis int64) {
	t.Helper()
	dir := filepath.Join(homeDir, ".gemini")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := map[string]any{"expiry_date": expiryMillis}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal oauth_creds.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "oauth_creds.json"), raw, 0600); err != nil {
		t.Fatalf("write oauth_creds.json: %v", err)
	}
}

func TestGeminiStrategy_Authenticate_Valid(t *testing.T) {
	home := t.TempDir()
	writeGeminiCreds(t, home, time.Now().Add(time.Hour).UnixMilli())

	s := &geminiStrategy{homeDir: home}
	cred, err := s.Authenticate(t.Context())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if cred.Tool != "gemini" {
		t.Errorf("Tool = %q, want gemini", cred.Tool)
	}
	if cred.OpaqueBlob == "" {
		t.Error("OpaqueBlob should not be empty")
	}
}

func TestGeminiStrategy_Authenticate_Expired(t *testing.T) {
	home := t.TempDir()
	writeGeminiCreds(t, home, time.Now().Add(-time.Hour).UnixMilli())

	s := &geminiStrategy{homeDir: home}
	if _, err := s.Authenticate(t.Context()); err == nil {
		t.Fatal("expected error for expired expiry_date")
	}
}

func TestGeminiStrategy_Authenticate_MissingFile(t *testing.T) {
	s := &geminiStrategy{homeDir: t.TempDir()}
	if _, err := s.Authenticate(t.Context()); err == nil {
		t.Fatal("expected error for missing oauth_creds.json")
	}
}

func TestGeminiStrategy_Probe_MirrorsAuthenticate(t *testing.T) {
	home := t.TempDir()
	writeGeminiCreds(t, home, time.Now().Add(time.Hour).UnixMilli())

	s := &geminiStrategy{homeDir: home}
	cred, ok := s.Probe(t.Context())
	if !ok {
		t.Fatal("Probe should succeed for a valid, unexpired oauth_creds.json")
	}
	if !s.IsFresh(cred) {
		t.Error("credential returned by Probe should be fresh")
	}
}
