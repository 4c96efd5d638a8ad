// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShredTree_RemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "secret.txt"), []byte("do not leak"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := shredTree(dir); err != nil {
		t.Fatalf("shredTree: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat err = %v", dir, err)
	}
}

func TestShredFile_OverwritesContentBeforeCaller(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.txt")
	original := []byte("do not leak this content")
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := shredFile(path); err != nil {
		t.Fatalf("shredFile: %v", err)
	}

	overwritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after shred: %v", err)
	}
	if len(overwritten) != len(original) {
		t.Fatalf("length changed: got %d, want %d", len(overwritten), len(original))
	}
	if string(overwritten) == string(original) {
		t.Error("expected file content to be overwritten with random bytes")
	}
}
