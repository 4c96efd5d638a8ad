// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
)

// Config is the fixed set of environment-derived knobs both flow
// binaries need. There is no config file: every value here is named
// directly in the external interfaces table, so reading os.Getenv at
// startup is the whole of configuration loading.
type Config struct {
	IssuerURL  string // HOKIPOKI_KEYCLOAK_ISSUER
	ClientID   string // HOKIPOKI_CLIENT_ID
	BackendURL string // BACKEND_URL

	FRPServerAddr string // FRP_SERVER_ADDR
	FRPServerPort string // FRP_SERVER_PORT
	FRPAuthToken  string // FRP_AUTH_TOKEN
	FRPHTTPPort   string // FRP_HTTP_PORT
	FRPDomain     string // FRP_TUNNEL_DOMAIN

	HomeDir string
}

// LoadConfig reads the environment and the user's home directory.
// IssuerURL and ClientID are mandatory; everything else has a sane
// default or is optional.
func LoadConfig() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("app: resolving home directory: %w", err)
	}

	cfg := &Config{
		IssuerURL:     os.Getenv("HOKIPOKI_KEYCLOAK_ISSUER"),
		ClientID:      os.Getenv("HOKIPOKI_CLIENT_ID"),
		BackendURL:    os.Getenv("BACKEND_URL"),
		FRPServerAddr: os.Getenv("FRP_SERVER_ADDR"),
		FRPServerPort: os.Getenv("FRP_SERVER_PORT"),
		FRPAuthToken:  os.Getenv("FRP_AUTH_TOKEN"),
		FRPHTTPPort:   os.Getenv("FRP_HTTP_PORT"),
		FRPDomain:     os.Getenv("FRP_TUNNEL_DOMAIN"),
		HomeDir:       homeDir,
	}
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("app: HOKIPOKI_KEYCLOAK_ISSUER is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("app: HOKIPOKI_CLIENT_ID is required")
	}
	return cfg, nil
}
