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

// geminiStrategy reads the native oauth_creds.json written by the
// gemini CLI's own login flow.
type geminiStrategy struct {
	homeDir string
}

func (s *geminiStrategy) credsPath() string {
	return filepath.Join(s.homeDir, ".gemini", "oauth_creds.json")
}

func (s *geminiStrategy) readAndValidate() (*ToolCredential, error) {
	raw, err := os.ReadFile(s.credsPath())
	if err != nil {
		return nil, fmt.Errorf("%w: reading gemini oauth_creds.json: %v", ErrReauthRequired, err)
	}

	var doc struct {
		ExpiryDateMillis int64 `json:"expiry_date"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing gemini oauth_creds.json: %v", ErrReauthRequired, err)
	}
	if doc.ExpiryDateMillis == 0 {
		return nil, fmt.Errorf("%w: gemini oauth_creds.json has no expiry_date", ErrReauthRequired)
	}

	expiresAt := time.UnixMilli(doc.ExpiryDateMillis)
	if !time.Now().Before(expiresAt) {
		return nil, fmt.Errorf("%w: gemini token expired at %s", ErrReauthRequired, expiresAt)
	}

	opaqueBlob, err := credcodec.Encode(raw)
	if err != nil {
		return nil, err
	}

	return &ToolCredential{Tool: "gemini", OpaqueBlob: opaqueBlob, ExpiresAt: expiresAt}, nil
}

func (s *geminiStrategy) Authenticate(ctx context.Context) (*ToolCredential, error) {
	return s.readAndValidate()
}

func (s *geminiStrategy) Probe(ctx context.Context) (*ToolCredential, bool) {
	cred, err := s.readAndValidate()
	if err != nil {
		return nil, false
	}
	return cred, true
}

func (s *geminiStrategy) IsFresh(cred *ToolCredential) bool {
	if cred == nil {
		return false
	}
	return time.Now().Before(cred.ExpiresAt)
}
