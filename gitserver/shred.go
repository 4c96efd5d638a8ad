// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"crypto/rand"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// shredMaxBytes is the cap on how much of a file shredTree overwrites
// with random bytes before deleting it, per spec.
const shredMaxBytes = 1 << 20 // 1 MiB

// shredTree overwrites every regular file under dir with up to
// shredMaxBytes of random data, then removes dir entirely. Best-effort:
// the caller's own comment on Stop documents why errors here are
// logged, not fatal.
func shredTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		return shredFile(path)
	})
	if err != nil {
		return fmt.Errorf("gitserver: shredding %s: %w", dir, err)
	}
	return os.RemoveAll(dir)
}

func shredFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	toOverwrite := info.Size()
	if toOverwrite > shredMaxBytes {
		toOverwrite = shredMaxBytes
	}

	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.CopyN(file, rand.Reader, toOverwrite); err != nil {
		return fmt.Errorf("overwriting %s: %w", path, err)
	}
	return nil
}
