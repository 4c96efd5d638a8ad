// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hokipoki/hokipoki/lib/vault"
)

// vaultKey is the fixed Token Vault key under which the whole
// credential set is stored, matching the on-disk layout's
// "tokens.enc  sealed array of ToolCredential".
const vaultKey = "tokens"

// Store persists the set of ToolCredentials register produced so a
// later listen invocation (a separate process run) can inject them
// into the sandbox without re-running each tool's acquisition step.
type Store struct {
	Vault *vault.Vault
}

// SaveAll seals and stores the full credential set, replacing whatever
// was previously stored.
func (s *Store) SaveAll(creds []ToolCredential) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("toolcred: marshaling credential set: %w", err)
	}
	envelope, err := s.Vault.Seal(vault.PurposeTokens, plaintext)
	if err != nil {
		return fmt.Errorf("toolcred: sealing credential set: %w", err)
	}
	return s.Vault.Store(vaultKey, envelope)
}

// LoadAll returns the persisted credential set, or nil if none has
// been saved yet.
func (s *Store) LoadAll() ([]ToolCredential, error) {
	envelope, err := s.Vault.Load(vaultKey)
	if errors.Is(err, vault.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toolcred: loading credential set: %w", err)
	}
	plaintext, err := s.Vault.Open(vault.PurposeTokens, envelope)
	if err != nil {
		return nil, fmt.Errorf("toolcred: opening credential set: %w", err)
	}
	var creds []ToolCredential
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("toolcred: decoding credential set: %w", err)
	}
	return creds, nil
}

// Get returns the credential for tool, if persisted.
func (s *Store) Get(tool string) (*ToolCredential, bool) {
	creds, err := s.LoadAll()
	if err != nil {
		return nil, false
	}
	for _, cred := range creds {
		if cred.Tool == tool {
			return &cred, true
		}
	}
	return nil, false
}

// Merge persists creds into the existing set, replacing any entry for
// the same tool.
func (s *Store) Merge(creds ...ToolCredential) error {
	existing, err := s.LoadAll()
	if err != nil {
		return err
	}
	byTool := make(map[string]ToolCredential, len(existing)+len(creds))
	for _, cred := range existing {
		byTool[cred.Tool] = cred
	}
	for _, cred := range creds {
		byTool[cred.Tool] = cred
	}
	merged := make([]ToolCredential, 0, len(byTool))
	for _, cred := range byTool {
		merged = append(merged, cred)
	}
	return s.SaveAll(merged)
}
