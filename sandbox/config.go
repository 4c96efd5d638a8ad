// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "fmt"

// ResourceConfig defines the resource limits applied to a task's
// container: a 1 GiB memory ceiling, no swap, and a 200-pid cap, per the
// sandbox's fixed resource envelope.
type ResourceConfig struct {
	// MemoryMax is a systemd-style memory limit string (e.g., "1G").
	MemoryMax string

	// TasksMax is the maximum number of processes/threads (pid cap).
	TasksMax int

	// CPUQuota is a systemd-style CPU quota string (e.g., "200%"). Empty
	// means unlimited.
	CPUQuota string

	// NoSwap disables swap for the container's memory cgroup.
	NoSwap bool
}

// HasLimits reports whether any resource limit is configured.
func (r ResourceConfig) HasLimits() bool {
	return r.MemoryMax != "" || r.TasksMax > 0 || r.CPUQuota != ""
}

// DefaultResources returns the fixed resource envelope mandated for every
// task sandbox: 1 GiB memory, no swap, 200 pids.
func DefaultResources() ResourceConfig {
	return ResourceConfig{
		MemoryMax: "1G",
		TasksMax:  200,
		NoSwap:    true,
	}
}

// TmpfsMount describes one of the sandbox's two tmpfs mounts.
type TmpfsMount struct {
	// Destination is the mount point inside the container.
	Destination string

	// SizeBytes bounds the tmpfs size.
	SizeBytes int64

	// Mode is the mount point's permission bits (e.g., 0755, 01777).
	Mode uint32
}

// DefaultTmpfsMounts returns the sandbox's two required tmpfs mounts:
// /workspace (300 MiB, 0755) and /tmp (50 MiB, 1777).
func DefaultTmpfsMounts() []TmpfsMount {
	const mebibyte = 1 << 20
	return []TmpfsMount{
		{Destination: "/workspace", SizeBytes: 300 * mebibyte, Mode: 0755},
		{Destination: "/tmp", SizeBytes: 50 * mebibyte, Mode: 01777},
	}
}

// DeviceCgroupRule grants the container access to a device major number,
// needed for loop devices (major 7) and devmapper (major 10) inside the
// otherwise-unprivileged container.
type DeviceCgroupRule struct {
	// Major is the device major number.
	Major int

	// Access is the permission string ("rwm" for read/write/mknod).
	Access string
}

// LUKSDeviceCgroupRules returns the device-cgroup allowances the
// container needs to create and open a LUKS-on-loop device.
func LUKSDeviceCgroupRules() []DeviceCgroupRule {
	return []DeviceCgroupRule{
		{Major: 7, Access: "rwm"},  // loop
		{Major: 10, Access: "rwm"}, // devmapper
	}
}

// Task describes the parameters of one sandboxed execution, assembled
// by the provider flow from the git_credentials payload it received
// over the relay's P2P channel.
type Task struct {
	// TaskID identifies the task; used to name the container
	// ("hokipoki-<taskId>") and derive the workspace image path.
	TaskID string

	// GitURL is the tunnel-fronted clone URL for the requester's
	// ephemeral git server.
	GitURL string

	// GitToken is the one-time bearer token for that server.
	GitToken string

	// Tool selects the AI CLI to run (claude, codex, gemini).
	Tool string

	// Model optionally overrides the AI CLI's default model.
	Model string

	// Description is the natural-language task text.
	Description string

	// OAuthToken is ToolCredential.opaqueBlob for Tool, transported
	// verbatim into the container: the raw OAuth token for claude, a
	// double-encoded credential document for codex and gemini.
	OAuthToken string
}

// Validate checks that a Task carries everything the executor needs.
func (t Task) Validate() error {
	if t.TaskID == "" {
		return fmt.Errorf("sandbox: task id is required")
	}
	if t.GitURL == "" {
		return fmt.Errorf("sandbox: git url is required")
	}
	if t.GitToken == "" {
		return fmt.Errorf("sandbox: git token is required")
	}
	switch t.Tool {
	case "claude", "codex", "gemini":
	default:
		return fmt.Errorf("sandbox: unsupported tool %q", t.Tool)
	}
	if t.OAuthToken == "" {
		return fmt.Errorf("sandbox: oauth token is required")
	}
	return nil
}

// ContainerName is the host-visible name used for supervision and
// cancellation-by-prefix: "hokipoki-<taskId>".
func (t Task) ContainerName() string {
	return "hokipoki-" + t.TaskID
}
