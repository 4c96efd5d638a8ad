// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// CommitMessageSentinelStart brackets the commit message the
	// in-container executor prints to stdout so the host-side supervisor
	// can capture it without depending on process exit-value plumbing.
	CommitMessageSentinelStart = "[HOKIPOKI_COMMIT_MESSAGE]"

	// CommitMessageSentinelEnd closes the bracket opened by
	// CommitMessageSentinelStart.
	CommitMessageSentinelEnd = "[/HOKIPOKI_COMMIT_MESSAGE]"

	maxSummaryLength = 200
)

var (
	tokenPattern = regexp.MustCompile(`[A-Za-z0-9_-]{20,}`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)
)

// SummarizeOutput derives the commit summary from the AI CLI's captured
// output: the first meaningful line (non-empty after trimming) up to
// 200 characters, with anything that looks like a bearer token or API
// key redacted, and URLs elided.
func SummarizeOutput(output string) string {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return redact(truncate(trimmed, maxSummaryLength))
	}
	return "no output"
}

// CommitMessage formats the full commit message for a task's result
// commit: "HokiPoki <tool>: <summary>".
func CommitMessage(tool, summary string) string {
	return fmt.Sprintf("HokiPoki %s: %s", tool, summary)
}

// WrapSentinel brackets a commit message with the sentinel pair so the
// host-side supervisor can extract it from mixed stdout/stderr output.
func WrapSentinel(commitMessage string) string {
	return CommitMessageSentinelStart + commitMessage + CommitMessageSentinelEnd
}

// ExtractSentinel scans arbitrary process output for a
// sentinel-bracketed commit message and returns it, or false if none is
// present (e.g. the working tree was clean and no commit was made).
func ExtractSentinel(output string) (string, bool) {
	start := strings.Index(output, CommitMessageSentinelStart)
	if start == -1 {
		return "", false
	}
	start += len(CommitMessageSentinelStart)
	end := strings.Index(output[start:], CommitMessageSentinelEnd)
	if end == -1 {
		return "", false
	}
	return output[start : start+end], true
}

func redact(s string) string {
	s = urlPattern.ReplaceAllString(s, "[URL]")
	s = tokenPattern.ReplaceAllString(s, "[REDACTED]")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// ContainsUnauthorized reports whether captured process output contains
// a "401 Unauthorized" marker, which the host-side supervisor uses to
// surface a re-authentication prompt instead of a generic failure.
func ContainsUnauthorized(output string) bool {
	return strings.Contains(output, "401 Unauthorized")
}
