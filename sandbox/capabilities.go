// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"strings"
)

// Capabilities describes what sandbox execution primitives are available
// on this provider host.
type Capabilities struct {
	// ContainerRuntimeAvailable is true if a container runtime (podman or
	// docker, whichever is found first) is installed.
	ContainerRuntimeAvailable bool

	// ContainerRuntimePath is the path to the runtime binary.
	ContainerRuntimePath string

	// CryptsetupAvailable is true if cryptsetup is installed, required
	// for the LUKS-on-loop workspace.
	CryptsetupAvailable bool

	// Mkfsext4Available is true if mkfs.ext4 is installed.
	Mkfsext4Available bool

	// LoopDevicesAvailable is true if the host exposes loop devices
	// (major 7) that the container can be granted access to.
	LoopDevicesAvailable bool

	// DevMapperAvailable is true if /dev/mapper exists, required for
	// luksOpen to create its mapping (devmapper major 10).
	DevMapperAvailable bool
}

// DetectCapabilities checks what sandbox execution primitives are
// available on the host.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{}

	for _, runtime := range []string{"podman", "docker"} {
		if path, err := exec.LookPath(runtime); err == nil {
			caps.ContainerRuntimeAvailable = true
			caps.ContainerRuntimePath = path
			break
		}
	}

	if _, err := exec.LookPath("cryptsetup"); err == nil {
		caps.CryptsetupAvailable = true
	}
	if _, err := exec.LookPath("mkfs.ext4"); err == nil {
		caps.Mkfsext4Available = true
	}
	if _, err := os.Stat("/dev/loop-control"); err == nil {
		caps.LoopDevicesAvailable = true
	}
	if info, err := os.Stat("/dev/mapper"); err == nil && info.IsDir() {
		caps.DevMapperAvailable = true
	}

	return caps
}

// CanRunSandbox returns true if the host has every primitive the
// encrypted sandbox needs.
func (c *Capabilities) CanRunSandbox() bool {
	return c.ContainerRuntimeAvailable && c.CryptsetupAvailable &&
		c.Mkfsext4Available && c.LoopDevicesAvailable && c.DevMapperAvailable
}

// SkipReason returns a human-readable reason why the sandbox can't run,
// or an empty string if it can.
func (c *Capabilities) SkipReason() string {
	var missing []string
	if !c.ContainerRuntimeAvailable {
		missing = append(missing, "no container runtime (podman or docker) found in PATH")
	}
	if !c.CryptsetupAvailable {
		missing = append(missing, "cryptsetup not installed")
	}
	if !c.Mkfsext4Available {
		missing = append(missing, "mkfs.ext4 not installed")
	}
	if !c.LoopDevicesAvailable {
		missing = append(missing, "/dev/loop-control not present (loop devices unavailable)")
	}
	if !c.DevMapperAvailable {
		missing = append(missing, "/dev/mapper not present (devmapper unavailable)")
	}
	return strings.Join(missing, "; ")
}
