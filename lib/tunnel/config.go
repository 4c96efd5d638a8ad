// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hokipoki/hokipoki/lib/vault"
)

// configCacheTTL is how long a fetched TunnelConfig remains valid before
// the caller must re-fetch it from the backend.
const configCacheTTL = 24 * time.Hour

const configVaultKey = "tunnel-config"

// Config describes the reverse-tunnel gateway this client connects
// through, as issued by the backend.
type Config struct {
	Token          string    `json:"token"`
	ServerAddr     string    `json:"serverAddr"`
	ServerPort     int       `json:"serverPort"`
	SubdomainHost  string    `json:"subdomainHost"`
	PublicHTTPPort int       `json:"publicHttpPort"`
	FetchedAt      time.Time `json:"fetchedAt"`
}

// Expired reports whether the config was fetched more than
// configCacheTTL ago.
func (c *Config) Expired() bool {
	return time.Since(c.FetchedAt) > configCacheTTL
}

// loadCachedConfig returns the sealed TunnelConfig from v, or nil if
// none is stored, expired, or unreadable.
func loadCachedConfig(v *vault.Vault) *Config {
	envelope, err := v.Load(configVaultKey)
	if err != nil {
		return nil
	}
	plaintext, err := v.Open(vault.PurposeTunnelConfig, envelope)
	if err != nil {
		return nil
	}
	var cfg Config
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil
	}
	if cfg.Expired() {
		return nil
	}
	return &cfg
}

// storeConfig seals cfg into v under the tunnel config purpose.
func storeConfig(v *vault.Vault, cfg *Config) error {
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("tunnel: marshaling config: %w", err)
	}
	envelope, err := v.Seal(vault.PurposeTunnelConfig, plaintext)
	if err != nil {
		return fmt.Errorf("tunnel: sealing config: %w", err)
	}
	return v.Store(configVaultKey, envelope)
}
