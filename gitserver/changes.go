// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hokipoki/hokipoki/lib/git"
)

// Changes is the result of GetChanges: the AI's own narrative, pulled
// out of an AI_OUTPUT.md diff hunk if one exists, and the remaining
// unified diff treated as actual code changes.
type Changes struct {
	AIReview    string
	CodeChanges string
}

// GetChanges clones the bare repo into a throwaway work tree and
// extracts the pushed commit(s) as a unified diff: git diff <root>
// HEAD when more than the initial commit exists, or git show HEAD when
// the provider pushed nothing. Any AI_OUTPUT.md section in the diff is
// split off as AIReview; everything else becomes CodeChanges.
func (s *Server) GetChanges(ctx context.Context) (*Changes, error) {
	cloneDir, err := os.MkdirTemp("", "hokipoki-changes-*")
	if err != nil {
		return nil, fmt.Errorf("gitserver: creating changes clone dir: %w", err)
	}
	defer os.RemoveAll(cloneDir)

	clone := git.NewRepository(cloneDir)
	if _, err := clone.Run(ctx, "clone", s.bareDir, "."); err != nil {
		return nil, fmt.Errorf("gitserver: cloning for diff extraction: %w", err)
	}

	countOutput, err := clone.Run(ctx, "rev-list", "--count", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("gitserver: counting commits: %w", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countOutput))
	if err != nil {
		return nil, fmt.Errorf("gitserver: parsing commit count %q: %w", countOutput, err)
	}

	var diff string
	if count >= 2 {
		rootOutput, err := clone.Run(ctx, "rev-list", "--max-parents=0", "HEAD")
		if err != nil {
			return nil, fmt.Errorf("gitserver: finding root commit: %w", err)
		}
		root := strings.TrimSpace(rootOutput)
		diff, err = clone.Run(ctx, "diff", root, "HEAD")
		if err != nil {
			return nil, fmt.Errorf("gitserver: diffing root..HEAD: %w", err)
		}
	} else {
		diff, err = clone.Run(ctx, "show", "HEAD")
		if err != nil {
			return nil, fmt.Errorf("gitserver: showing HEAD: %w", err)
		}
	}

	return splitAIOutput(diff), nil
}

// splitAIOutput separates any "diff --git a/AI_OUTPUT.md b/AI_OUTPUT.md"
// hunk (through the next "diff --git" or end of input) from the rest of
// the diff.
func splitAIOutput(diff string) *Changes {
	lines := strings.Split(diff, "\n")

	var review, code []string
	inAIOutputHunk := false

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") {
			inAIOutputHunk = strings.Contains(line, "AI_OUTPUT.md")
		}
		if inAIOutputHunk {
			review = append(review, line)
		} else {
			code = append(code, line)
		}
	}

	return &Changes{
		AIReview:    strings.TrimSpace(strings.Join(review, "\n")),
		CodeChanges: strings.TrimSpace(strings.Join(code, "\n")),
	}
}
