// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault implements the Token Vault: a small on-disk store for
// long-lived secrets (OIDC tokens, tunnel configuration, tool
// credentials), sealed with AES-256-GCM under a key that never leaves
// the local machine.
//
// The root key is a single 32-byte random value generated on first use
// and stored at <home>/.hokipoki/key.secret with owner-only permissions.
// Every purpose (identity tokens, tunnel config, tool credentials) gets
// its own AES-256-GCM key, derived from the root key via HKDF-SHA256
// with the purpose name as the "info" parameter — so a new purpose can
// be added later without migrating the on-disk format or any existing
// envelope.
//
// Unlike lib/sealed (which targets age's multi-recipient scheme for
// values shared over Matrix state events), the vault has exactly one
// reader: the local process holding the root key. Its envelope format
// is a literal AES-256-GCM layout (iv, tag, ciphertext), not an age
// ciphertext, and ciphertext is stored as raw bytes rather than
// base64 since these are files, not JSON fields.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"

	"github.com/hokipoki/hokipoki/lib/secret"
)

// KeySize is the size in bytes of the vault's root key and every
// purpose-derived AES-256 key.
const KeySize = 32

// ErrKeyUnavailable is returned when the root key file cannot be
// created or read.
var ErrKeyUnavailable = errors.New("vault: key unavailable")

// ErrIntegrityFailure is returned when an envelope's authentication tag
// does not verify — wrong key, truncated data, or tampering.
var ErrIntegrityFailure = errors.New("vault: integrity failure")

// ErrNotFound is returned by Load when no envelope is stored under the
// given key.
var ErrNotFound = errors.New("vault: not found")

// Purpose names used as HKDF "info" for domain separation between
// independently-derived AES keys. Adding a purpose here never affects
// envelopes sealed under an existing one.
const (
	PurposeKeycloakToken = "keycloak_token"
	PurposeTunnelConfig  = "tunnel_config"
	PurposeTokens        = "tokens"
)

// Vault seals, opens, and persists envelopes under a single root key
// stored in Dir. The root key is created lazily on first use.
type Vault struct {
	// Dir is the vault's home directory (normally <home>/.hokipoki).
	// key.secret and every stored envelope live directly under it.
	Dir string
}

// New returns a Vault rooted at dir. The directory is not created until
// the first seal/store/load call.
func New(dir string) *Vault {
	return &Vault{Dir: dir}
}

func (v *Vault) keyPath() string {
	return filepath.Join(v.Dir, "key.secret")
}

func (v *Vault) envelopePath(key string) string {
	return filepath.Join(v.Dir, key+".enc")
}

// rootKey loads the vault's root key, generating and persisting a new
// one on first use. The returned buffer must be closed by the caller.
func (v *Vault) rootKey() (*secret.Buffer, error) {
	if err := os.MkdirAll(v.Dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating vault directory: %v", ErrKeyUnavailable, err)
	}

	existing, err := os.ReadFile(v.keyPath())
	if err == nil {
		if len(existing) != KeySize {
			secret.Zero(existing)
			return nil, fmt.Errorf("%w: key file is %d bytes, want %d", ErrKeyUnavailable, len(existing), KeySize)
		}
		return secret.NewFromBytes(existing)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading key file: %v", ErrKeyUnavailable, err)
	}

	raw := make([]byte, KeySize)
	if _, readErr := io.ReadFull(rand.Reader, raw); readErr != nil {
		return nil, fmt.Errorf("%w: generating key: %v", ErrKeyUnavailable, readErr)
	}
	if writeErr := os.WriteFile(v.keyPath(), raw, 0600); writeErr != nil {
		secret.Zero(raw)
		return nil, fmt.Errorf("%w: writing key file: %v", ErrKeyUnavailable, writeErr)
	}

	return secret.NewFromBytes(raw)
}

// derivePurposeKey derives the AES-256 key for a purpose from the root
// key via HKDF-SHA256. The returned buffer must be closed by the caller.
func derivePurposeKey(rootKey *secret.Buffer, purpose string) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, rootKey.Bytes(), nil, []byte(purpose))
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("vault: deriving purpose key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// Seal encrypts plaintext under the purpose-derived key and returns the
// resulting envelope. Plaintext is not retained or zeroed by Seal; the
// caller owns its lifetime.
func (v *Vault) Seal(purpose string, plaintext []byte) (*Envelope, error) {
	rootKey, err := v.rootKey()
	if err != nil {
		return nil, err
	}
	defer rootKey.Close()

	purposeKey, err := derivePurposeKey(rootKey, purpose)
	if err != nil {
		return nil, err
	}
	defer purposeKey.Close()

	block, err := aes.NewCipher(purposeKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vault: creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating GCM: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("vault: generating iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagSize := gcm.Overhead()
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return &Envelope{IV: iv, Tag: tag, Ciphertext: ciphertext}, nil
}

// Open decrypts an envelope sealed under the given purpose. Returns
// ErrIntegrityFailure if the tag does not verify.
func (v *Vault) Open(purpose string, envelope *Envelope) ([]byte, error) {
	rootKey, err := v.rootKey()
	if err != nil {
		return nil, err
	}
	defer rootKey.Close()

	purposeKey, err := derivePurposeKey(rootKey, purpose)
	if err != nil {
		return nil, err
	}
	defer purposeKey.Close()

	block, err := aes.NewCipher(purposeKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vault: creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating GCM: %w", err)
	}

	sealed := append(append([]byte{}, envelope.Ciphertext...), envelope.Tag...)
	plaintext, err := gcm.Open(nil, envelope.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrityFailure, err)
	}
	return plaintext, nil
}

// Store persists an envelope under key, overwriting any prior value.
func (v *Vault) Store(key string, envelope *Envelope) error {
	if err := os.MkdirAll(v.Dir, 0700); err != nil {
		return fmt.Errorf("vault: creating vault directory: %w", err)
	}
	if err := os.WriteFile(v.envelopePath(key), envelope.Marshal(), 0600); err != nil {
		return fmt.Errorf("vault: storing envelope %q: %w", key, err)
	}
	return nil
}

// Load reads the envelope stored under key. Returns ErrNotFound if no
// envelope has been stored under that key.
func (v *Vault) Load(key string) (*Envelope, error) {
	data, err := os.ReadFile(v.envelopePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("vault: loading envelope %q: %w", key, err)
	}
	return UnmarshalEnvelope(data)
}

// Delete removes the envelope stored under key. Deleting a key that
// does not exist is not an error.
func (v *Vault) Delete(key string) error {
	if err := os.Remove(v.envelopePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: deleting envelope %q: %w", key, err)
	}
	return nil
}
