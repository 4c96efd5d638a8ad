// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hokipoki-sandbox-init is PID 1 inside the encrypted sandbox
// container: it reads the task parameters the host injected as
// environment variables, runs the ordered in-container step sequence,
// and exits nonzero on any failure so the host-side Executor reports
// the task as failed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hokipoki/hokipoki/sandbox"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	task := sandbox.Task{
		TaskID:      os.Getenv("TASK_ID"),
		GitURL:      os.Getenv("GIT_URL"),
		GitToken:    os.Getenv("GIT_TOKEN"),
		Tool:        os.Getenv("AI_TOOL"),
		Model:       os.Getenv("AI_MODEL"),
		Description: os.Getenv("TASK_DESCRIPTION"),
		OAuthToken:  os.Getenv("OAUTH_TOKEN"),
	}

	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = "/root"
	}

	steps := &sandbox.InContainerSteps{
		Task:          task,
		HomeDir:       homeDir,
		WorkspaceRoot: "/workspace",
		Logger:        logger,
	}

	commitMessage, err := steps.Run(context.Background())
	if err != nil {
		logger.Error("sandbox run failed", "task_id", task.TaskID, "error", err)
		os.Exit(1)
	}

	if commitMessage == "" {
		fmt.Println("hokipoki: working tree clean, no commit produced")
	}
	os.Exit(0)
}
