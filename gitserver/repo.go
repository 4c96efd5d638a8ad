// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hokipoki/hokipoki/lib/git"
)

// InputFile is one file to seed the task's initial commit with, path
// relative to the requester's working directory at task creation time.
type InputFile struct {
	Path    string
	Content []byte
}

const placeholderFileName = "TASK.md"

// sanitizeRelativePath rejects absolute paths and strips any leading
// ".." traversal components so a malicious or malformed input path
// cannot escape the work tree.
func sanitizeRelativePath(path string) (string, error) {
	cleaned := filepath.Clean(filepath.ToSlash(path))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("gitserver: input path %q must be relative", path)
	}
	segments := strings.Split(cleaned, "/")
	kept := segments[:0]
	for _, segment := range segments {
		if segment == ".." || segment == "." || segment == "" {
			continue
		}
		kept = append(kept, segment)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("gitserver: input path %q resolves to nothing after sanitizing", path)
	}
	return filepath.Join(kept...), nil
}

// Initialize creates the bare repository at <homeDir>/.hokipoki/tmp/<taskID>.git,
// materializes a scratch work tree on branch main seeded with files (or a
// synthesized placeholder if files is empty, a testing affordance per
// spec), and pushes the initial commit into the bare repo.
func (s *Server) Initialize(ctx context.Context, files []InputFile) error {
	bareDir := filepath.Join(s.HomeDir, ".hokipoki", "tmp", s.TaskID+".git")
	if err := os.MkdirAll(bareDir, 0700); err != nil {
		return fmt.Errorf("gitserver: creating bare repo dir: %w", err)
	}
	bareRepo := git.NewRepository(bareDir)
	if _, err := bareRepo.Run(ctx, "init", "--bare", "-b", "main"); err != nil {
		return fmt.Errorf("gitserver: initializing bare repo: %w", err)
	}
	if _, err := bareRepo.Run(ctx, "config", "http.receivepack", "true"); err != nil {
		return fmt.Errorf("gitserver: enabling http.receivepack: %w", err)
	}

	workTreeDir, err := os.MkdirTemp("", "hokipoki-worktree-*")
	if err != nil {
		return fmt.Errorf("gitserver: creating scratch work tree: %w", err)
	}
	workTree := git.NewRepository(workTreeDir)

	if _, err := workTree.Run(ctx, "init", "-b", "main"); err != nil {
		return err
	}
	if _, err := workTree.Run(ctx, "config", "user.email", "hokipoki@localhost"); err != nil {
		return err
	}
	if _, err := workTree.Run(ctx, "config", "user.name", "HokiPoki"); err != nil {
		return err
	}

	if err := writeInputFiles(workTreeDir, files); err != nil {
		return err
	}

	if _, err := workTree.Run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("gitserver: staging input files: %w", err)
	}
	if _, err := workTree.Run(ctx, "commit", "-m", "Initial task files"); err != nil {
		return fmt.Errorf("gitserver: committing input files: %w", err)
	}
	if _, err := workTree.Run(ctx, "remote", "add", "origin", bareDir); err != nil {
		return fmt.Errorf("gitserver: adding bare repo remote: %w", err)
	}
	if _, err := workTree.Run(ctx, "push", "origin", "main"); err != nil {
		return fmt.Errorf("gitserver: pushing initial commit: %w", err)
	}

	s.bareDir = bareDir
	s.scratchWorkTree = workTreeDir
	return nil
}

func writeInputFiles(workTreeDir string, files []InputFile) error {
	if len(files) == 0 {
		placeholder := filepath.Join(workTreeDir, placeholderFileName)
		content := []byte("# HokiPoki task\n\nNo input files were provided.\n")
		return os.WriteFile(placeholder, content, 0644)
	}

	for _, file := range files {
		relative, err := sanitizeRelativePath(file.Path)
		if err != nil {
			return err
		}
		destination := filepath.Join(workTreeDir, relative)
		if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
			return fmt.Errorf("gitserver: creating directory for %s: %w", relative, err)
		}
		if err := os.WriteFile(destination, file.Content, 0644); err != nil {
			return fmt.Errorf("gitserver: writing %s: %w", relative, err)
		}
	}
	return nil
}
