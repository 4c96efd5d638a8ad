// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/hokipoki/hokipoki/lib/git"
	"github.com/hokipoki/hokipoki/lib/hokierr"
)

func runGit(t *testing.T, args ...string) {
	t.Helper()
	command := exec.Command("git", args...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.local",
	)
	if output, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, output)
	}
}

func initWorkingRepo(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	runGit(t, "init", "-q")
	if err := os.WriteFile("existing.txt", []byte("line one\nline two\n"), 0644); err != nil {
		t.Fatalf("writing existing.txt: %v", err)
	}
	runGit(t, "add", "existing.txt")
	runGit(t, "commit", "-q", "-m", "initial")
}

func TestSavePatch(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	path, err := savePatch("task-123", "diff --git a/x b/x\n", now)
	if err != nil {
		t.Fatalf("savePatch: %v", err)
	}

	want := filepath.Join("patches", fmt.Sprintf("hokipoki-task-123-%d.patch", now.Unix()))
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved patch: %v", err)
	}
	if string(content) != "diff --git a/x b/x\n" {
		t.Fatalf("content = %q", content)
	}
}

func TestMaterializeNewFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	diff := "diff --git a/sub/new.txt b/sub/new.txt\n" +
		"new file mode 100644\n" +
		"index 0000000..abcdef1\n" +
		"--- /dev/null\n" +
		"+++ b/sub/new.txt\n" +
		"@@ -0,0 +1,2 @@\n" +
		"+hello\n" +
		"+world\n"

	if err := materializeNewFiles(diff); err != nil {
		t.Fatalf("materializeNewFiles: %v", err)
	}

	content, err := os.ReadFile(filepath.Join("sub", "new.txt"))
	if err != nil {
		t.Fatalf("reading materialized file: %v", err)
	}
	if string(content) != "hello\nworld" {
		t.Fatalf("content = %q", content)
	}
}

func TestMaterializeNewFiles_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile("already.txt", []byte("untouched"), 0644); err != nil {
		t.Fatalf("seeding already.txt: %v", err)
	}

	diff := "diff --git a/already.txt b/already.txt\n" +
		"new file mode 100644\n" +
		"+should not appear\n"

	if err := materializeNewFiles(diff); err != nil {
		t.Fatalf("materializeNewFiles: %v", err)
	}

	content, err := os.ReadFile("already.txt")
	if err != nil {
		t.Fatalf("reading already.txt: %v", err)
	}
	if string(content) != "untouched" {
		t.Fatalf("existing file was overwritten: %q", content)
	}
}

func TestApplyPatch(t *testing.T) {
	initWorkingRepo(t)

	diff := "diff --git a/existing.txt b/existing.txt\n" +
		"index 1111111..2222222 100644\n" +
		"--- a/existing.txt\n" +
		"+++ b/existing.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" line one\n" +
		"-line two\n" +
		"+line two changed\n"

	patchPath, err := savePatch("task-apply", diff, time.Now())
	if err != nil {
		t.Fatalf("savePatch: %v", err)
	}

	repo := git.NewRepository(".")
	if err := applyPatch(context.Background(), repo, diff, patchPath); err != nil {
		t.Fatalf("applyPatch: %v", err)
	}

	content, err := os.ReadFile("existing.txt")
	if err != nil {
		t.Fatalf("reading existing.txt: %v", err)
	}
	if string(content) != "line one\nline two changed\n" {
		t.Fatalf("existing.txt = %q", content)
	}
}

func TestApplyPatch_ConflictReturnsPatchConflictError(t *testing.T) {
	initWorkingRepo(t)

	diff := "diff --git a/existing.txt b/existing.txt\n" +
		"index 1111111..2222222 100644\n" +
		"--- a/existing.txt\n" +
		"+++ b/existing.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" this context does not exist\n" +
		"-line two\n" +
		"+line two changed\n"

	patchPath, err := savePatch("task-conflict", diff, time.Now())
	if err != nil {
		t.Fatalf("savePatch: %v", err)
	}

	repo := git.NewRepository(".")
	err = applyPatch(context.Background(), repo, diff, patchPath)
	if err == nil {
		t.Fatalf("expected applyPatch to fail on a non-matching hunk")
	}
	if !errors.Is(err, hokierr.ErrPatchConflict) {
		t.Fatalf("applyPatch error = %v, want hokierr.ErrPatchConflict", err)
	}
}
