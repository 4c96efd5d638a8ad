// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs a single task's AI CLI invocation inside an
// encrypted, ephemeral container on the provider's host.
//
// The central type is [Executor], which runs a prebuilt container image
// ([Executor.Image]) carrying the supported AI CLI binaries plus
// cryptsetup, mkfs.ext4, and git; it does not build the image. For each task, the in-container entrypoint ([InContainerSteps])
// formats a 100 MiB tmpfs-backed image file as a LUKS volume, opens it
// with a freshly generated, never-persisted key, mounts an ext4
// filesystem inside the decrypted mapping, clones the task's ephemeral
// repository into it, materializes the requester-supplied tool credential
// there, runs the AI CLI, and pushes the resulting commit back out.
//
// [Capabilities] probes the host for the primitives the executor depends
// on (cryptsetup, mkfs.ext4, a usable container runtime, loop/devmapper
// device access) so callers can fail fast with an actionable message
// instead of failing deep inside a container run. Resource limits
// (memory, pids, swap) are expressed as a [ResourceConfig], which the
// Executor translates into container runtime flags. [SystemdScope] can
// express the same limits as systemd transient-scope properties, but the
// Executor does not use it.
//
// The sandbox never persists the LUKS key or the cloned workspace outside
// the container's tmpfs-backed mounts. On any failure path,
// [InContainerSteps.EmergencyWipe] overwrites and removes the files under
// the workspace mount and /tmp. A clean run does not call it: it tears
// down the LUKS volume (unmount, close, overwrite and delete the image)
// and shreds the git credential helper.
package sandbox
