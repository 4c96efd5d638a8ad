// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p2p

import "testing"

func TestWrapUnwrapRoundTrip(t *testing.T) {
	creds := GitCredentials{
		GitURL:          "https://tunnel.example/t1.git",
		GitToken:        "bearer-token",
		Tool:            "claude",
		TaskDescription: "fix the typo",
	}

	frame, err := Wrap("requester-1", "provider-1", TypeGitCredentials, creds)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if frame.From != "requester-1" || frame.To != "provider-1" {
		t.Errorf("frame routing = %+v", frame)
	}
	if frame.Payload.Type != TypeGitCredentials {
		t.Errorf("payload type = %q", frame.Payload.Type)
	}
	if frame.Payload.Timestamp == "" {
		t.Error("expected a non-empty timestamp")
	}

	var decoded GitCredentials
	if err := Unwrap(frame.Payload, &decoded); err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if decoded != creds {
		t.Errorf("decoded = %+v, want %+v", decoded, creds)
	}
}

func TestUnwrap_MalformedPayload(t *testing.T) {
	frame, err := Wrap("a", "b", TypeConfirmation, Confirmation{TaskID: "t1", Accepted: true, Credits: 2.5})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	var wrongShape struct {
		Nested struct{ X int } `json:"taskId"`
	}
	if err := Unwrap(frame.Payload, &wrongShape); err == nil {
		t.Fatal("expected a decode error for mismatched shape")
	}
}
