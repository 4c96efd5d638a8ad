// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolcred

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// jwtExpiry extracts the "exp" (Unix seconds) claim from a JWT's
// payload segment without verifying the signature. No JWT library
// exists anywhere in this repository's dependency set (see
// DESIGN.md); codex's own auth.json already carries a token that was
// issued directly by the OpenAI backend, so this package only needs to
// read the expiry it already asserts.
func jwtExpiry(token string) (time.Time, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return time.Time{}, fmt.Errorf("toolcred: token is not a three-segment JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("toolcred: decoding JWT payload: %w", err)
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, fmt.Errorf("toolcred: parsing JWT claims: %w", err)
	}
	if claims.Exp == 0 {
		return time.Time{}, fmt.Errorf("toolcred: JWT has no exp claim")
	}
	return time.Unix(claims.Exp, 0), nil
}
