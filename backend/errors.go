// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"errors"
	"fmt"

	"github.com/hokipoki/hokipoki/lib/hokierr"
)

// Error is a structured error response from the backend: any non-2xx
// HTTP status. Callers use errors.As to recover the status code.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Body)
}

// Classify maps a backend *Error onto a hokierr.Kind per spec §7: 401
// means the caller's token is no longer good (AuthRequired), any other
// non-2xx is NetworkTransient — the backend responded, just not with
// success, and policy treats that the same as an unreachable backend
// for advisory calls.
func Classify(err error) hokierr.Kind {
	var backendErr *Error
	if errors.As(err, &backendErr) {
		if backendErr.StatusCode == 401 {
			return hokierr.KindAuthRequired
		}
		return hokierr.KindNetworkTransient
	}
	if err != nil {
		return hokierr.KindNetworkTransient
	}
	return hokierr.KindUnknown
}
