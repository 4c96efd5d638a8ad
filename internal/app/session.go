// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hokipoki/hokipoki/backend"
	"github.com/hokipoki/hokipoki/lib/identity"
	"github.com/hokipoki/hokipoki/lib/tunnel"
	"github.com/hokipoki/hokipoki/lib/vault"
)

// callbackPort is the fixed loopback port the Identity Agent's OIDC
// redirect URI binds to.
const callbackPort = 51820

// Session wires together the long-lived clients both flows need:
// sealed-secret storage, the OIDC identity agent, the reverse-tunnel
// client, and the backend REST client (constructed lazily once a token
// is available).
type Session struct {
	Config *Config
	Vault  *vault.Vault
	Agent  *identity.Agent
	Tunnel *tunnel.Client
	Logger *slog.Logger
}

// NewSession builds the client stack from cfg. It does not perform
// network I/O; call EnsureToken before using Tunnel or Backend.
func NewSession(cfg *Config, logger *slog.Logger) *Session {
	v := vault.New(cfg.HomeDir)

	agent := &identity.Agent{
		IssuerURL:      cfg.IssuerURL,
		ClientID:       cfg.ClientID,
		CallbackPort:   callbackPort,
		VerifyEndpoint: cfg.BackendURL + "/api/auth/check-verified",
		Vault:          v,
		Logger:         logger,
	}

	tunnelClient := &tunnel.Client{
		BinaryName: "frpc",
		HomeDir:    cfg.HomeDir,
		Vault:      v,
		Logger:     logger,
	}

	return &Session{Config: cfg, Vault: v, Agent: agent, Tunnel: tunnelClient, Logger: logger}
}

// EnsureToken returns a valid access token, triggering interactive
// login if none is cached. It also wires Tunnel.FetchConfig to the
// backend now that a token is available, since tunnel provisioning
// requires an authenticated backend call.
func (s *Session) EnsureToken(ctx context.Context) (string, error) {
	token, err := s.Agent.GetToken(ctx)
	if err != nil {
		if loginErr := s.Agent.Login(ctx); loginErr != nil {
			return "", fmt.Errorf("app: login: %w", loginErr)
		}
		token, err = s.Agent.GetToken(ctx)
		if err != nil {
			return "", fmt.Errorf("app: fetching token after login: %w", err)
		}
	}

	client := s.Backend(token)
	s.Tunnel.FetchConfig = func(ctx context.Context) (*tunnel.Config, error) {
		fetched, err := client.TunnelToken(ctx)
		if err != nil {
			return nil, err
		}
		return &tunnel.Config{
			Token:          fetched.Token,
			ServerAddr:     fetched.ServerAddr,
			ServerPort:     fetched.ServerPort,
			SubdomainHost:  fetched.SubdomainHost,
			PublicHTTPPort: fetched.PublicHTTPPort,
		}, nil
	}
	return token, nil
}

// Backend builds a backend.Client authenticated with token.
func (s *Session) Backend(token string) *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL: s.Config.BackendURL,
		Token:   token,
		Logger:  s.Logger,
	})
}

// VaultKeyPath is exposed for diagnostics only; most callers never need it.
func (s *Session) VaultKeyPath() string {
	return filepath.Join(s.Config.HomeDir, ".hokipoki", "key.secret")
}
