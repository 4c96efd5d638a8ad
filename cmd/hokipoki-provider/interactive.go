// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"golang.org/x/term"
)

// isInteractive reports whether stdin is a terminal, the same check
// the accept prompt uses to decide whether to ask the operator instead
// of falling back to decline.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
