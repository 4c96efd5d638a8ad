// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/hokipoki/hokipoki/lib/vault"
)

// ErrReauthenticate is returned by GetToken when the cached refresh
// token can no longer produce a valid access token.
var ErrReauthenticate = errors.New("identity: reauthentication required")

// ErrEmailUnverified is returned by Login when the backend's
// verification probe reports the account's email as unverified.
var ErrEmailUnverified = errors.New("identity: email not verified")

// refreshWindow is how much validity must remain on the cached access
// token before GetToken will use it without refreshing.
const refreshWindow = 5 * time.Minute

// callbackTimeout bounds how long Login waits for the provider
// redirect before giving up.
const callbackTimeout = 5 * time.Minute

// vaultKey is the fixed Token Vault key under which the cached token
// bundle is stored.
const vaultKey = "identity"

// tokenBundle is what Login caches in the vault and GetToken refreshes.
type tokenBundle struct {
	AccessToken  string    `json:"access"`
	RefreshToken string    `json:"refresh"`
	IDToken      string    `json:"idToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Agent drives the OIDC authorization-code-with-PKCE login flow and
// caches the resulting tokens in a Vault.
type Agent struct {
	// IssuerURL is the OIDC issuer; discovery is fetched from
	// <IssuerURL>/.well-known/openid-configuration.
	IssuerURL string

	// ClientID is the OAuth client identifier registered with the
	// provider for this application.
	ClientID string

	// CallbackPort is the fixed loopback port the redirect URI binds
	// to (e.g. "http://127.0.0.1:<CallbackPort>/callback").
	CallbackPort int

	// VerifyEndpoint, if set, is queried as
	// "<VerifyEndpoint>?email=<email>" after a successful token
	// exchange. A {"verified":false} response fails login with
	// ErrEmailUnverified; network errors are treated as verified
	// (fail-open).
	VerifyEndpoint string

	Vault      *vault.Vault
	HTTPClient *http.Client
	Logger     *slog.Logger

	metadata *providerMetadata
}

func (a *Agent) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Agent) redirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", a.CallbackPort)
}

func (a *Agent) discoverOnce(ctx context.Context) (*providerMetadata, error) {
	if a.metadata != nil {
		return a.metadata, nil
	}
	metadata, err := discover(ctx, a.httpClient(), a.IssuerURL)
	if err != nil {
		return nil, err
	}
	a.metadata = metadata
	return metadata, nil
}

func (a *Agent) oauthConfig(metadata *providerMetadata) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    a.ClientID,
		RedirectURL: a.redirectURI(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  metadata.AuthorizationEndpoint,
			TokenURL: metadata.TokenEndpoint,
		},
	}
}

// Login runs the full authorization-code-with-PKCE flow: binds the
// loopback callback listener, opens the platform browser, waits for
// the redirect, exchanges the code, optionally verifies the account's
// email, and caches the resulting bundle in the vault.
func (a *Agent) Login(ctx context.Context) error {
	metadata, err := a.discoverOnce(ctx)
	if err != nil {
		return err
	}

	verifier, err := newPKCE()
	if err != nil {
		return err
	}
	state, err := generateState()
	if err != nil {
		return err
	}

	config := a.oauthConfig(metadata)
	authURL := config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", verifier.challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	a.logger().Info("opening browser for authentication", "url", authURL)
	if err := openBrowser(authURL); err != nil {
		a.logger().Warn("could not open browser automatically", "error", err, "url", authURL)
	}

	server := newCallbackServer(a.CallbackPort)
	code, err := server.waitForCode(ctx, state, callbackTimeout)
	if err != nil {
		return err
	}

	token, err := config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier.verifier),
	)
	if err != nil {
		return fmt.Errorf("identity: exchanging authorization code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	bundle := tokenBundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    token.Expiry,
	}

	if a.VerifyEndpoint != "" {
		verified, checkErr := a.checkEmailVerified(ctx, bundle)
		if checkErr == nil && !verified {
			return ErrEmailUnverified
		}
		// Network errors on the probe fail open: a fresh login is not
		// blocked by the verification backend being unreachable.
	}

	return a.store(bundle)
}

// GetToken returns a valid access token, refreshing through the
// provider's token endpoint if fewer than refreshWindow remains.
// Fails with ErrReauthenticate if no bundle is cached or the refresh
// itself fails.
func (a *Agent) GetToken(ctx context.Context) (string, error) {
	bundle, err := a.load()
	if err != nil {
		return "", ErrReauthenticate
	}

	if time.Until(bundle.ExpiresAt) > refreshWindow {
		return bundle.AccessToken, nil
	}

	metadata, err := a.discoverOnce(ctx)
	if err != nil {
		return "", fmt.Errorf("identity: discovering provider for refresh: %w", err)
	}
	config := a.oauthConfig(metadata)

	source := config.TokenSource(ctx, &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Expiry:       bundle.ExpiresAt,
	})
	refreshed, err := source.Token()
	if err != nil {
		return "", ErrReauthenticate
	}

	idToken, _ := refreshed.Extra("id_token").(string)
	newBundle := tokenBundle{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    refreshed.Expiry,
	}
	if newBundle.RefreshToken == "" {
		newBundle.RefreshToken = bundle.RefreshToken
	}
	if err := a.store(newBundle); err != nil {
		return "", fmt.Errorf("identity: caching refreshed token: %w", err)
	}
	return newBundle.AccessToken, nil
}

// Logout best-effort notifies the provider's end-session endpoint,
// then deletes the cached token bundle and any tunnel configuration
// cache regardless of whether that notification succeeded.
func (a *Agent) Logout(ctx context.Context) error {
	bundle, loadErr := a.load()
	if loadErr == nil && bundle.IDToken != "" {
		if metadata, discErr := a.discoverOnce(ctx); discErr == nil && metadata.EndSessionEndpoint != "" {
			a.bestEffortEndSession(ctx, metadata.EndSessionEndpoint, bundle.IDToken)
		}
	}

	if err := a.Vault.Delete(vaultKey); err != nil {
		return err
	}
	return a.Vault.Delete("tunnel-config")
}

func (a *Agent) bestEffortEndSession(ctx context.Context, endpoint, idToken string) {
	values := url.Values{"id_token_hint": {idToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return
	}
	req.URL.RawQuery = values.Encode()
	resp, err := a.httpClient().Do(req)
	if err != nil {
		a.logger().Warn("end-session notification failed", "error", err)
		return
	}
	resp.Body.Close()
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

func (a *Agent) checkEmailVerified(ctx context.Context, bundle tokenBundle) (bool, error) {
	email, err := extractEmailClaim(bundle.IDToken)
	if err != nil || email == "" {
		// No email claim to check against; treat as verified.
		return true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.VerifyEndpoint, nil)
	if err != nil {
		return true, err
	}
	req.URL.RawQuery = url.Values{"email": {email}}.Encode()

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return true, err
	}
	return parsed.Verified, nil
}

func (a *Agent) store(bundle tokenBundle) error {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("identity: marshaling token bundle: %w", err)
	}
	envelope, err := a.Vault.Seal(vault.PurposeKeycloakToken, plaintext)
	if err != nil {
		return err
	}
	return a.Vault.Store(vaultKey, envelope)
}

func (a *Agent) load() (tokenBundle, error) {
	envelope, err := a.Vault.Load(vaultKey)
	if err != nil {
		return tokenBundle{}, err
	}
	plaintext, err := a.Vault.Open(vault.PurposeKeycloakToken, envelope)
	if err != nil {
		return tokenBundle{}, err
	}
	var bundle tokenBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return tokenBundle{}, fmt.Errorf("identity: unmarshaling cached token bundle: %w", err)
	}
	return bundle, nil
}
