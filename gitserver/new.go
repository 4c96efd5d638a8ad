// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gitserver

import (
	"fmt"
	"path/filepath"

	"github.com/hokipoki/hokipoki/lib/tunnel"
)

// tmpDir is the parent directory holding every task's bare repo:
// <homeDir>/.hokipoki/tmp.
func tmpDir(homeDir string) string {
	return filepath.Join(homeDir, ".hokipoki", "tmp")
}

// NewServer generates a fresh one-time bearer token and returns a
// Server ready for Initialize.
func NewServer(taskID, homeDir string, tunnelClient *tunnel.Client) (*Server, error) {
	bearer, err := generateBearer()
	if err != nil {
		return nil, fmt.Errorf("gitserver: %w", err)
	}
	return &Server{
		TaskID:  taskID,
		HomeDir: homeDir,
		Bearer:  bearer,
		Tunnel:  tunnelClient,
	}, nil
}
