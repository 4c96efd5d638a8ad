// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credcodec

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []string{
		`{"access_token":"abc123","expiry_date":1234567890}`,
		`{"nested":"has \"quotes\" and \\backslashes\\"}`,
		``,
	}
	for _, native := range cases {
		encoded, err := Encode([]byte(native))
		if err != nil {
			t.Fatalf("Encode(%q): %v", native, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q): %v", encoded, err)
		}
		if string(decoded) != native {
			t.Errorf("round trip = %q, want %q", decoded, native)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode("not json at all"); err == nil {
		t.Error("expected error decoding malformed blob")
	}
	if _, err := Decode(`"only one layer"`); err == nil {
		t.Error("expected error decoding single-encoded blob")
	}
}
