// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/hokipoki/hokipoki/lib/vault"
)

// tunnelStartupTimeout is how long Open waits to see whether the spawned
// process exits immediately (a fast failure) before declaring it
// started. Var rather than const so tests can shrink it.
var tunnelStartupTimeout = 5 * time.Second

// Handle is a live tunnel: PublicURL is where remote peers reach the
// local port, and Close tears the tunnel down.
type Handle struct {
	PublicURL string
	Close     func() error
}

// Options requests a specific tunnel shape from Client.Open.
type Options struct {
	LocalPort int
	Subdomain string // empty picks a random "<adj>-<animal>-<n>" name
}

// Client owns the tunnel binary and the fetched TunnelConfig cache. A
// Client is safe for use by one Open call at a time; concurrent tunnels
// should use separate per-tunnel config files, which Open already
// generates from the tunnel's subdomain.
type Client struct {
	BinaryName string // e.g. "frpc"
	HomeDir    string
	Vault      *vault.Vault
	HTTPClient *http.Client
	Logger     *slog.Logger

	// FetchConfig retrieves a fresh TunnelConfig from the backend. Called
	// only when no unexpired cached config exists.
	FetchConfig func(ctx context.Context) (*Config, error)

	// Fallback, if set, is used to establish connectivity when the
	// tunnel binary cannot be resolved or the spawned process exits
	// within tunnelStartupTimeout.
	Fallback *WebRTCFallback
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// configFor returns an unexpired TunnelConfig, from the vault cache if
// possible, otherwise via FetchConfig.
func (c *Client) configFor(ctx context.Context) (*Config, error) {
	if cached := loadCachedConfig(c.Vault); cached != nil {
		return cached, nil
	}
	if c.FetchConfig == nil {
		return nil, fmt.Errorf("tunnel: no cached config and no FetchConfig configured")
	}
	cfg, err := c.FetchConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("tunnel: fetching tunnel config: %w", err)
	}
	cfg.FetchedAt = time.Now()
	if err := storeConfig(c.Vault, cfg); err != nil {
		c.logger().Warn("caching tunnel config failed", "error", err)
	}
	return cfg, nil
}

// Open spawns a tunnel exposing opts.LocalPort behind a public URL. If
// the tunnel binary cannot be resolved, or the process exits within
// tunnelStartupTimeout, and a Fallback is configured, Open
// negotiates a WebRTC data-channel bridge instead.
func (c *Client) Open(ctx context.Context, opts Options) (*Handle, error) {
	cfg, err := c.configFor(ctx)
	if err != nil {
		return nil, err
	}

	subdomain := opts.Subdomain
	if subdomain == "" {
		subdomain, err = generateSubdomain()
		if err != nil {
			return nil, err
		}
	}

	handle, err := c.openProcessTunnel(ctx, cfg, subdomain, opts.LocalPort)
	if err == nil {
		return handle, nil
	}
	c.logger().Warn("process-based tunnel unavailable, falling back to WebRTC", "error", err)

	if c.Fallback == nil {
		return nil, fmt.Errorf("tunnel: opening tunnel: %w", err)
	}
	return c.Fallback.Open(ctx, opts.LocalPort, subdomain)
}

// openProcessTunnel is the default path: locate/download the FRP-style
// binary, write a per-tunnel config file, and spawn it.
func (c *Client) openProcessTunnel(ctx context.Context, cfg *Config, subdomain string, localPort int) (*Handle, error) {
	binaryPath, err := ensureBinary(ctx, c.httpClient(), c.HomeDir, c.BinaryName)
	if err != nil {
		return nil, err
	}

	configPath, err := c.writeProcessConfig(cfg, subdomain, localPort)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), binaryPath, "-c", configPath)
	if err := cmd.Start(); err != nil {
		os.Remove(configPath)
		return nil, fmt.Errorf("tunnel: starting tunnel process: %w", err)
	}

	startupErr := waitForStartup(cmd, tunnelStartupTimeout)
	if startupErr != nil {
		cmd.Process.Kill()
		os.Remove(configPath)
		return nil, startupErr
	}

	publicURL := fmt.Sprintf("http://%s.%s", subdomain, cfg.SubdomainHost)
	closed := false
	closeFn := func() error {
		if closed {
			return nil
		}
		closed = true
		if cmd.Process != nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
		return os.Remove(configPath)
	}

	return &Handle{PublicURL: publicURL, Close: closeFn}, nil
}

// waitForStartup gives the tunnel process a short window to exit early
// (a fast failure, e.g. bad config or unreachable gateway) before
// declaring it started.
func waitForStartup(cmd *exec.Cmd, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return fmt.Errorf("tunnel: process exited during startup: %w", err)
	case <-time.After(timeout):
		return nil
	}
}

// tunnelProcessConfig is the JSONC document written for the spawned
// binary: {serverAddr, serverPort, shared-secret, http proxy with
// localPort, subdomain}.
type tunnelProcessConfig struct {
	ServerAddr string `json:"serverAddr"`
	ServerPort int    `json:"serverPort"`
	Token      string `json:"token"`
	Proxies    []struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		LocalPort int    `json:"localPort"`
		Subdomain string `json:"subdomain"`
	} `json:"proxies"`
}

func (c *Client) writeProcessConfig(cfg *Config, subdomain string, localPort int) (string, error) {
	dir, err := binDir(c.HomeDir)
	if err != nil {
		return "", err
	}
	configPath := filepath.Join(dir, subdomain+".json")

	doc := tunnelProcessConfig{
		ServerAddr: cfg.ServerAddr,
		ServerPort: cfg.ServerPort,
		Token:      cfg.Token,
	}
	doc.Proxies = append(doc.Proxies, struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		LocalPort int    `json:"localPort"`
		Subdomain string `json:"subdomain"`
	}{
		Name:      subdomain,
		Type:      "http",
		LocalPort: localPort,
		Subdomain: subdomain,
	})

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("tunnel: marshaling process config: %w", err)
	}
	// Round-trip through jsonc.ToJSON so this file can later be hand-
	// edited with comments by an operator without the parser choking.
	if err := os.WriteFile(configPath, jsonc.ToJSON(raw), 0600); err != nil {
		return "", fmt.Errorf("tunnel: writing process config: %w", err)
	}
	return configPath, nil
}
