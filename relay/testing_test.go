// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "context"

// tokenAuthenticator is a test double: the token itself is the user ID,
// which is all these tests need to exercise the hub's matching logic.
type tokenAuthenticator struct{}

func (tokenAuthenticator) Authenticate(ctx context.Context, token string) (AuthResult, error) {
	return AuthResult{UserID: token}, nil
}
