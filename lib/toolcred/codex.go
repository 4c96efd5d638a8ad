// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hokipoki/hokipoki/lib/credcodec"
)

// codexStrategy reads the native auth.json produced by `codex login`.
type codexStrategy struct {
	homeDir string
}

func (s *codexStrategy) authPath() string {
	return filepath.Join(s.homeDir, ".codex", "auth.json")
}

// readAndValidate reads auth.json and extracts the id_token's exp
// claim. Shared by Authenticate and Probe.
func (s *codexStrategy) readAndValidate() (*ToolCredential, error) {
	raw, err := os.ReadFile(s.authPath())
	if err != nil {
		return nil, fmt.Errorf("%w: reading codex auth.json: %v", ErrReauthRequired, err)
	}

	var doc struct {
		Tokens struct {
			IDToken string `json:"id_token"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing codex auth.json: %v", ErrReauthRequired, err)
	}
	if doc.Tokens.IDToken == "" {
		return nil, fmt.Errorf("%w: codex auth.json has no id_token", ErrReauthRequired)
	}

	expiresAt, err := jwtExpiry(doc.Tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	if !time.Now().Before(expiresAt) {
		return nil, fmt.Errorf("%w: codex token expired at %s", ErrReauthRequired, expiresAt)
	}

	opaqueBlob, err := credcodec.Encode(raw)
	if err != nil {
		return nil, err
	}

	return &ToolCredential{Tool: "codex", OpaqueBlob: opaqueBlob, ExpiresAt: expiresAt}, nil
}

func (s *codexStrategy) Authenticate(ctx context.Context) (*ToolCredential, error) {
	return s.readAndValidate()
}

func (s *codexStrategy) Probe(ctx context.Context) (*ToolCredential, bool) {
	cred, err := s.readAndValidate()
	if err != nil {
		return nil, false
	}
	return cred, true
}

func (s *codexStrategy) IsFresh(cred *ToolCredential) bool {
	if cred == nil {
		return false
	}
	return time.Now().Before(cred.ExpiresAt)
}
