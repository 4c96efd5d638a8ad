// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// basicAuthPassword is the literal password spec requires when a client
// authenticates via HTTP Basic: the bearer token is carried as the
// username, and this fixed string is the password.
const basicAuthPassword = "x-oauth-basic"

// bearerSize is the number of random bytes backing a one-time bearer
// token, satisfying the invariant that it is uniformly random at least
// 256 bits.
const bearerSize = 32

// generateBearer returns a fresh base64url-encoded 256-bit bearer token.
func generateBearer() (string, error) {
	buf := make([]byte, bearerSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("gitserver: generating bearer token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// requireBearer wraps handler so every request must carry a token
// matching expected, via an Authorization: Bearer header, HTTP Basic
// (username = token, password = the literal "x-oauth-basic"), or a
// "?token=" query parameter fallback. On mismatch it replies 401 with a
// WWW-Authenticate challenge, per spec.
func requireBearer(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !bearerMatches(r, expected) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Git"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func bearerMatches(r *http.Request, expected string) bool {
	if token, ok := bearerFromAuthorizationHeader(r); ok {
		return constantTimeEqual(token, expected)
	}
	if username, password, ok := r.BasicAuth(); ok {
		return constantTimeEqual(password, basicAuthPassword) && constantTimeEqual(username, expected)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return constantTimeEqual(token, expected)
	}
	return false
}

func bearerFromAuthorizationHeader(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
