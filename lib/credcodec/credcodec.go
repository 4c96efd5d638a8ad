// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credcodec implements the double-encoding convention used to
// carry a tool's native credential document (whatever JSON that tool's
// own auth file expects) as a single opaque string field, both over the
// relay wire and inside the sandbox container.
//
// A native document is serialized once to produce a JSON string, and
// that string is serialized again. The result decodes with exactly two
// json.Unmarshal calls into a string, recovering the original bytes
// unchanged, regardless of what characters the native document contains.
package credcodec

import (
	"encoding/json"
	"fmt"
)

// Encode double-encodes a native credential document into an opaque
// blob suitable for a JSON string field.
func Encode(nativeDocument []byte) (string, error) {
	innerString, err := json.Marshal(string(nativeDocument))
	if err != nil {
		return "", fmt.Errorf("credcodec: encoding credential: %w", err)
	}
	outerString, err := json.Marshal(string(innerString))
	if err != nil {
		return "", fmt.Errorf("credcodec: encoding credential: %w", err)
	}
	return string(outerString), nil
}

// Decode reverses Encode: two JSON string-decodes recover the native
// credential document's raw bytes.
func Decode(opaqueBlob string) ([]byte, error) {
	var innerString string
	if err := json.Unmarshal([]byte(opaqueBlob), &innerString); err != nil {
		return nil, fmt.Errorf("credcodec: decoding credential (outer): %w", err)
	}
	var nativeDocument string
	if err := json.Unmarshal([]byte(innerString), &nativeDocument); err != nil {
		return nil, fmt.Errorf("credcodec: decoding credential (inner): %w", err)
	}
	return []byte(nativeDocument), nil
}
