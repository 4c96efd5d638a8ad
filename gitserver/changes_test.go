// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hokipoki/hokipoki/lib/git"
)

func newTestServer(t *testing.T, taskID string) *Server {
	t.Helper()
	return &Server{
		TaskID:  taskID,
		HomeDir: t.TempDir(),
	}
}

func TestInitialize_EmptyFilesSynthesizesPlaceholder(t *testing.T) {
	s := newTestServer(t, "task-empty")
	ctx := t.Context()

	if err := s.Initialize(ctx, nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := os.Stat(s.bareDir); err != nil {
		t.Fatalf("bare repo was not created: %v", err)
	}

	changes, err := s.GetChanges(ctx)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if !strings.Contains(changes.CodeChanges, placeholderFileName) {
		t.Errorf("expected the synthesized placeholder file in the initial show, got:\n%s", changes.CodeChanges)
	}
}

func TestInitialize_SeedsProvidedFiles(t *testing.T) {
	s := newTestServer(t, "task-seeded")
	ctx := t.Context()

	files := []InputFile{
		{Path: "main.go", Content: []byte("package main\n")},
		{Path: "../escape.txt", Content: []byte("should land at repo root\n")},
	}
	if err := s.Initialize(ctx, files); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	changes, err := s.GetChanges(ctx)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if !strings.Contains(changes.CodeChanges, "main.go") {
		t.Errorf("expected main.go in initial show, got:\n%s", changes.CodeChanges)
	}
}

func TestGetChanges_SplitsAIOutputFromCodeChanges(t *testing.T) {
	s := newTestServer(t, "task-push")
	ctx := t.Context()

	if err := s.Initialize(ctx, []InputFile{{Path: "main.go", Content: []byte("package main\n")}}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Simulate the provider's clone-edit-commit-push cycle.
	cloneDir := t.TempDir()
	clone := git.NewRepository(cloneDir)
	if _, err := clone.Run(ctx, "clone", s.bareDir, "."); err != nil {
		t.Fatalf("clone: %v", err)
	}
	if _, err := clone.Run(ctx, "config", "user.email", "provider@localhost"); err != nil {
		t.Fatalf("config email: %v", err)
	}
	if _, err := clone.Run(ctx, "config", "user.name", "Provider"); err != nil {
		t.Fatalf("config name: %v", err)
	}

	if err := os.WriteFile(filepath.Join(cloneDir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatalf("write main.go: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cloneDir, "AI_OUTPUT.md"), []byte("# AI review\n\nAdded a main function.\n"), 0644); err != nil {
		t.Fatalf("write AI_OUTPUT.md: %v", err)
	}
	if _, err := clone.Run(ctx, "add", "-A"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := clone.Run(ctx, "commit", "-m", "HokiPoki claude: add main function"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := clone.Run(ctx, "push", "origin", "main"); err != nil {
		t.Fatalf("push: %v", err)
	}

	changes, err := s.GetChanges(ctx)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if !strings.Contains(changes.AIReview, "Added a main function") {
		t.Errorf("AIReview missing expected content, got:\n%s", changes.AIReview)
	}
	if strings.Contains(changes.CodeChanges, "Added a main function") {
		t.Error("CodeChanges should not contain the AI_OUTPUT.md hunk content")
	}
	if !strings.Contains(changes.CodeChanges, "func main()") {
		t.Errorf("CodeChanges missing expected code diff, got:\n%s", changes.CodeChanges)
	}
}
