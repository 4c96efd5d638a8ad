// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/hokipoki/hokipoki/gitserver"
)

// collectInputFiles reads each path relative to the current working
// directory into a gitserver.InputFile. A missing path is a hard
// error: silently skipping it would seed the task with fewer files
// than the operator asked for.
func collectInputFiles(paths []string) ([]gitserver.InputFile, error) {
	files := make([]gitserver.InputFile, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		files = append(files, gitserver.InputFile{Path: path, Content: content})
	}
	return files, nil
}
