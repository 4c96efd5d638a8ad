// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/hokipoki/hokipoki/internal/app"
)

func TestSplitTools(t *testing.T) {
	cases := map[string][]string{
		"":                    nil,
		"claude":              {"claude"},
		"claude,codex":        {"claude", "codex"},
		" claude , codex ,, ": {"claude", "codex"},
	}
	for input, want := range cases {
		got := splitTools(input)
		if len(got) != len(want) {
			t.Fatalf("splitTools(%q) = %v, want %v", input, got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("splitTools(%q) = %v, want %v", input, got, want)
			}
		}
	}
}

func TestTunnelHostMapping(t *testing.T) {
	if got := tunnelHostMapping(&app.Config{}); got != "" {
		t.Fatalf("tunnelHostMapping(no domain) = %q, want empty", got)
	}
	cfg := &app.Config{FRPDomain: "tunnels.hokipoki.example"}
	want := "tunnels.hokipoki.example:host-gateway"
	if got := tunnelHostMapping(cfg); got != want {
		t.Fatalf("tunnelHostMapping = %q, want %q", got, want)
	}
}
