// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Executor builds and runs the encrypted sandbox container on the
// provider's host. One Executor is created per provider process; Run is
// called once per accepted task.
type Executor struct {
	// Image is the container image carrying the AI CLI binaries,
	// cryptsetup, mkfs.ext4, and git, plus the hokipoki-sandbox-init
	// entrypoint.
	Image string

	// Runtime is the container runtime binary ("podman" or "docker"),
	// resolved via Capabilities.
	Runtime string

	// TunnelHost maps the requester's tunnel subdomain to the host
	// gateway address, so the container's DNS resolves the public tunnel
	// URL back to the host's tunnel endpoint.
	TunnelHost string

	Resources ResourceConfig

	Logger *slog.Logger
}

// Result is what the host observes about a completed (or failed) task
// run: the extracted commit message and whether re-authentication should
// be surfaced to the operator.
type Result struct {
	CommitMessage  string
	ReauthRequired bool
	CombinedOutput string
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run spawns the container for a task, waits for it to complete, and
// force-removes it on every exit path (success, failure, or context
// cancellation).
func (e *Executor) Run(ctx context.Context, task Task) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	containerName := task.ContainerName()
	args := e.buildRunArgs(containerName, task)

	e.logger().Info("starting sandbox container", "task_id", task.TaskID, "container", containerName)

	cmd := exec.CommandContext(ctx, e.Runtime, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	runErr := cmd.Run()

	// Force-remove regardless of outcome; the container is single-shot.
	e.forceRemove(containerName)

	combined := output.String()
	result := &Result{
		CombinedOutput: combined,
		ReauthRequired: ContainsUnauthorized(combined),
	}

	if commitMessage, ok := ExtractSentinel(combined); ok {
		result.CommitMessage = commitMessage
	}

	if runErr != nil {
		return result, fmt.Errorf("sandbox container exited with error: %w", runErr)
	}
	return result, nil
}

// Kill force-removes a running container by name, used for cancellation
// (§4.9, §5): the provider kills the container by the
// "hokipoki-<taskId>" prefix on receipt of task_cancelled.
func (e *Executor) Kill(taskID string) {
	e.forceRemove("hokipoki-" + taskID)
}

func (e *Executor) forceRemove(containerName string) {
	cmd := exec.Command(e.Runtime, "rm", "--force", containerName)
	_ = cmd.Run()
}

func (e *Executor) buildRunArgs(containerName string, task Task) []string {
	args := []string{
		"run", "--rm",
		"--name", containerName,
		"--cap-drop", "ALL",
		"--cap-add", "SYS_ADMIN",
		"--cap-add", "MKNOD",
		"--security-opt", "seccomp=unconfined", // required for cryptsetup/mkfs syscalls
	}

	for _, rule := range LUKSDeviceCgroupRules() {
		args = append(args, "--device-cgroup-rule",
			fmt.Sprintf("b %d:* %s", rule.Major, rule.Access))
	}

	resources := e.Resources
	if !resources.HasLimits() {
		resources = DefaultResources()
	}
	if resources.MemoryMax != "" {
		args = append(args, "--memory", resources.MemoryMax)
	}
	if resources.NoSwap {
		args = append(args, "--memory-swap", resourceMemorySwapEqualsMemory(resources.MemoryMax))
	}
	if resources.TasksMax > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(resources.TasksMax))
	}

	for _, mount := range DefaultTmpfsMounts() {
		args = append(args, "--tmpfs",
			fmt.Sprintf("%s:size=%d,mode=%o", mount.Destination, mount.SizeBytes, mount.Mode))
	}

	if e.TunnelHost != "" {
		args = append(args, "--add-host", e.TunnelHost)
	}

	env := map[string]string{
		"TASK_ID":          task.TaskID,
		"GIT_URL":          task.GitURL,
		"GIT_TOKEN":        task.GitToken,
		"AI_TOOL":          task.Tool,
		"TASK_DESCRIPTION": task.Description,
		"OAUTH_TOKEN":      task.OAuthToken,
	}
	if task.Model != "" {
		env["AI_MODEL"] = task.Model
	}
	for key, value := range env {
		args = append(args, "--env", key+"="+value)
	}

	args = append(args, e.Image)
	return args
}

// resourceMemorySwapEqualsMemory returns the same value as the memory
// limit, which is how Docker/Podman express "no swap" (memory-swap ==
// memory means zero additional swap is granted).
func resourceMemorySwapEqualsMemory(memoryMax string) string {
	return strings.TrimSpace(memoryMax)
}
