// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hokipoki/hokipoki/lib/vault"
)

func writeFakeSleeperBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\nsleep 30\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func writeFakeFailingBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func testClient(t *testing.T, binDirOnPath string) *Client {
	t.Helper()
	oldPath := os.Getenv("PATH")
	os.Setenv("PATH", binDirOnPath)
	t.Cleanup(func() { os.Setenv("PATH", oldPath) })

	return &Client{
		BinaryName: "fake-tunnel-client",
		HomeDir:    t.TempDir(),
		Vault:      vault.New(t.TempDir()),
		FetchConfig: func(ctx context.Context) (*Config, error) {
			return &Config{
				Token:          "shared-secret",
				ServerAddr:     "relay.example.com",
				ServerPort:     7000,
				SubdomainHost:  "tunnel.example.com",
				PublicHTTPPort: 80,
			}, nil
		},
	}
}

func TestClient_Open_ProcessTunnel(t *testing.T) {
	tunnelStartupTimeout = 50 * time.Millisecond
	defer func() { tunnelStartupTimeout = 5 * time.Second }()

	dir := t.TempDir()
	writeFakeSleeperBinary(t, dir, "fake-tunnel-client")
	client := testClient(t, dir)

	handle, err := client.Open(t.Context(), Options{LocalPort: 8080, Subdomain: "test-otter-1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer handle.Close()

	want := "http://test-otter-1.tunnel.example.com"
	if handle.PublicURL != want {
		t.Errorf("PublicURL = %q, want %q", handle.PublicURL, want)
	}

	if err := handle.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestClient_Open_FastFailingProcessFallsThrough(t *testing.T) {
	tunnelStartupTimeout = 200 * time.Millisecond
	defer func() { tunnelStartupTimeout = 5 * time.Second }()

	dir := t.TempDir()
	writeFakeFailingBinary(t, dir, "fake-tunnel-client")
	client := testClient(t, dir)

	_, err := client.Open(t.Context(), Options{LocalPort: 8080, Subdomain: "test-otter-2"})
	if err == nil {
		t.Fatal("expected an error when the tunnel process exits immediately and no fallback is configured")
	}
}

func TestClient_WriteProcessConfig(t *testing.T) {
	client := testClient(t, t.TempDir())
	cfg := &Config{ServerAddr: "relay.example.com", ServerPort: 7000, Token: "shared-secret"}

	path, err := client.writeProcessConfig(cfg, "test-otter-3", 9090)
	if err != nil {
		t.Fatalf("writeProcessConfig: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty config file")
	}
}
