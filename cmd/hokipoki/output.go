// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// isInteractive reports whether stdout is a terminal. Per §9's
// "Interactive vs AI-CLI mode" note, a non-TTY stdout switches the flow
// to structured output blocks consumed by an upstream AI CLI driving
// hokipoki as a subprocess.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// reporter is how the flow surfaces progress and its final result,
// implemented once for the interactive TUI and once for the
// machine-readable structured mode.
type reporter interface {
	Phase(name string)
	Line(format string, args ...any)
	Result(res flowResult)
}

// flowResult is what a completed (or failed) flow reports.
type flowResult struct {
	TaskID     string
	Accepted   bool
	AIReview   string
	PatchPath  string // non-empty if a patch was saved instead of applied
	Applied    bool
	FailReason string
}

// plainReporter is the non-interactive reporter: every phase and line
// goes to stderr as plain text, and the terminal result is the
// structured [HOKIPOKI_RESULT]/[HOKIPOKI_PATCH] block contract that
// upstream AI CLIs parse.
type plainReporter struct{}

func (plainReporter) Phase(name string) {
	fmt.Fprintf(os.Stderr, "==> %s\n", name)
}

func (plainReporter) Line(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (plainReporter) Result(res flowResult) {
	fmt.Println("[HOKIPOKI_RESULT]")
	fmt.Printf("taskId=%s\n", res.TaskID)
	fmt.Printf("accepted=%t\n", res.Accepted)
	fmt.Printf("applied=%t\n", res.Applied)
	if res.FailReason != "" {
		fmt.Printf("reason=%s\n", res.FailReason)
	}
	fmt.Println("[/HOKIPOKI_RESULT]")

	if res.AIReview != "" {
		fmt.Println("[HOKIPOKI_AI_REVIEW]")
		fmt.Println(res.AIReview)
		fmt.Println("[/HOKIPOKI_AI_REVIEW]")
	}
	if res.PatchPath != "" {
		fmt.Println("[HOKIPOKI_PATCH]")
		fmt.Println(res.PatchPath)
		fmt.Println("[/HOKIPOKI_PATCH]")
	}
}
