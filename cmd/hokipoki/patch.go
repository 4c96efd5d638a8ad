// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hokipoki/hokipoki/lib/git"
	"github.com/hokipoki/hokipoki/lib/hokierr"
)

var diffGitHeaderRe = regexp.MustCompile(`^diff --git a/(\S+) b/(\S+)`)

// savePatch writes diff under ./patches/hokipoki-<taskID>-<ts>.patch and
// returns the path.
func savePatch(taskID string, diff string, now time.Time) (string, error) {
	dir := "patches"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating patches directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("hokipoki-%s-%d.patch", taskID, now.Unix()))
	if err := os.WriteFile(path, []byte(diff), 0644); err != nil {
		return "", fmt.Errorf("writing patch file %s: %w", path, err)
	}
	return path, nil
}

// materializeNewFiles scans diff for "new file mode" hunks and creates
// each named file from its accumulated "+" content before git apply
// runs, per §4.8's new-file detection rule. git apply can normally
// create new files on its own, but a hunk with no preceding content on
// disk to context-match against needs the file to already exist as an
// empty target in some git versions; this mirrors what the original
// flow does explicitly rather than relying on that behavior.
func materializeNewFiles(diff string) error {
	lines := strings.Split(diff, "\n")

	var currentFile string
	var isNewFile bool
	var content []string

	flush := func() error {
		if currentFile == "" || !isNewFile {
			return nil
		}
		if _, err := os.Stat(currentFile); err == nil {
			return nil // already applied or pre-existing
		}
		if dir := filepath.Dir(currentFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating directory for new file %s: %w", currentFile, err)
			}
		}
		return os.WriteFile(currentFile, []byte(strings.Join(content, "\n")), 0644)
	}

	for _, line := range lines {
		if match := diffGitHeaderRe.FindStringSubmatch(line); match != nil {
			if err := flush(); err != nil {
				return err
			}
			currentFile = match[2]
			isNewFile = false
			content = nil
			continue
		}
		if strings.HasPrefix(line, "new file mode") {
			isNewFile = true
			continue
		}
		if isNewFile && strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			content = append(content, strings.TrimPrefix(line, "+"))
		}
	}
	return flush()
}

// applyPatch runs git apply --check then git apply against repo's
// working tree using the saved patch file. It returns
// hokierr.ErrPatchConflict wrapped around the check failure's output
// when the check fails, leaving the patch file for the caller to keep.
func applyPatch(ctx context.Context, repo *git.Repository, diff, patchPath string) error {
	if err := materializeNewFiles(diff); err != nil {
		return fmt.Errorf("materializing new files: %w", err)
	}

	if _, err := repo.Run(ctx, "apply", "--check", patchPath); err != nil {
		return fmt.Errorf("%w: %s", hokierr.ErrPatchConflict, err)
	}
	if _, err := repo.Run(ctx, "apply", patchPath); err != nil {
		return fmt.Errorf("%w: %s", hokierr.ErrPatchConflict, err)
	}
	return nil
}

// removePatch deletes a successfully-applied patch file.
func removePatch(path string) error {
	return os.Remove(path)
}
