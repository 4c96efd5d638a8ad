// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity implements the Identity Agent: an OIDC
// authorization-code-with-PKCE login flow against a discoverable
// OpenID provider, a loopback callback server to receive the redirect,
// and token caching through the Token Vault.
//
// Login binds a fixed-port loopback HTTP listener, opens the platform
// browser to the provider's authorization endpoint, and waits for the
// redirect carrying the authorization code and the generated state
// value. The code is exchanged for tokens using the discovered token
// endpoint; the resulting {access, refresh, idToken, expiresAt} bundle
// is sealed and stored in the vault under PurposeKeycloakToken.
//
// GetToken returns a valid access token, transparently refreshing when
// fewer than five minutes of validity remain, and fails with
// ErrReauthenticate if the refresh token itself has expired or been
// revoked. Logout best-effort notifies the provider's end-session
// endpoint and deletes every envelope this package has stored.
package identity
