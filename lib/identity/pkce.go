// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// pkceVerifierSize is the size in bytes of the random PKCE code
// verifier before base64url encoding.
const pkceVerifierSize = 32

// pkce holds a PKCE code verifier and its S256 challenge.
// golang.org/x/oauth2 exchanges an authorization code but does not
// generate PKCE material itself, so the Identity Agent generates it.
type pkce struct {
	verifier  string
	challenge string
}

func newPKCE() (*pkce, error) {
	raw := make([]byte, pkceVerifierSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("identity: generating pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	return &pkce{verifier: verifier, challenge: challenge}, nil
}

// generateState returns a random URL-safe value for the OAuth "state"
// parameter, used to bind the callback to the request that initiated
// it.
func generateState() (string, error) {
	raw := make([]byte, pkceVerifierSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("identity: generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
