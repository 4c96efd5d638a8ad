// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// LUKSVolume represents the encrypted workspace mounted at /workspace/code
// inside the sandbox container. Every field describes host-visible (i.e.
// in-container-visible) state; the decryption key itself is held only in
// the process address space that called Format, per the SandboxSession
// invariant that the key never touches disk.
type LUKSVolume struct {
	// ImagePath is the tmpfs-backed sparse file backing the loop device
	// (e.g. "/workspace/workspace.img").
	ImagePath string

	// MapperName is the device-mapper name ("workspace"), giving a
	// device node at /dev/mapper/<MapperName>.
	MapperName string

	// MountPoint is where the opened ext4 filesystem is mounted
	// ("/workspace/code").
	MountPoint string

	loopDevice string
}

const luksImageSizeMiB = 100

// PrepareImage precleans any stale mapping from a previous run, then
// creates a fresh sparse image file for the LUKS container.
func PrepareImage(ctx context.Context, imagePath, mapperName string) error {
	precleanStaleMapping(ctx, mapperName)

	if err := run(ctx, "dd",
		"if=/dev/zero", "of="+imagePath, "bs=1M",
		fmt.Sprintf("count=%d", luksImageSizeMiB),
	); err != nil {
		return fmt.Errorf("creating luks image: %w", err)
	}
	return nil
}

// precleanStaleMapping removes a device-mapper entry left behind by a
// crashed prior run. Errors are ignored: the mapping may simply not
// exist, which is the common case.
func precleanStaleMapping(ctx context.Context, mapperName string) {
	_ = run(ctx, "cryptsetup", "close", mapperName)
}

// generateKey returns a freshly generated 32-byte LUKS passphrase. The
// caller is responsible for zeroing it (via Zero) as soon as it has been
// written to the transient keyfile and the keyfile has been shredded.
func generateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating luks key: %w", err)
	}
	return key, nil
}

// Zero overwrites a byte slice in place. Used to scrub the LUKS key and
// keyfile contents from memory/disk as soon as each is no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Format runs luksFormat and luksOpen against a fresh image, returning
// the opened volume. The keyfile holding the passphrase is written to a
// tmpfs-backed path, used for both cryptsetup invocations, and shredded
// when Format returns, regardless of outcome.
func Format(ctx context.Context, imagePath, mapperName, mountPoint, keyfileDir string) (*LUKSVolume, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	keyfilePath := filepath.Join(keyfileDir, ".luks-keyfile")
	if err := os.WriteFile(keyfilePath, key, 0600); err != nil {
		return nil, fmt.Errorf("writing luks keyfile: %w", err)
	}
	defer shred(keyfilePath)

	if err := run(ctx, "cryptsetup", "luksFormat", "--batch-mode",
		"--key-file", keyfilePath, imagePath); err != nil {
		return nil, fmt.Errorf("luksFormat: %w", err)
	}

	if err := run(ctx, "cryptsetup", "luksOpen", "--disable-keyring",
		"--key-file", keyfilePath, imagePath, mapperName); err != nil {
		return nil, fmt.Errorf("luksOpen: %w", err)
	}

	mapperPath := filepath.Join("/dev/mapper", mapperName)
	if err := run(ctx, "mkfs.ext4", "-F", mapperPath); err != nil {
		_ = run(ctx, "cryptsetup", "close", mapperName)
		return nil, fmt.Errorf("mkfs.ext4: %w", err)
	}

	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		_ = run(ctx, "cryptsetup", "close", mapperName)
		return nil, fmt.Errorf("creating mount point: %w", err)
	}
	if err := run(ctx, "mount", mapperPath, mountPoint); err != nil {
		_ = run(ctx, "cryptsetup", "close", mapperName)
		return nil, fmt.Errorf("mounting %s: %w", mapperPath, err)
	}

	return &LUKSVolume{
		ImagePath:  imagePath,
		MapperName: mapperName,
		MountPoint: mountPoint,
	}, nil
}

// Teardown unmounts, closes the LUKS mapping, overwrites the backing
// image with random bytes, and removes it. Every step is attempted even
// if an earlier one fails, so a partially-initialized volume is still
// wiped as thoroughly as possible.
func (v *LUKSVolume) Teardown(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(run(ctx, "umount", v.MountPoint))
	record(run(ctx, "cryptsetup", "close", v.MapperName))
	record(overwriteWithRandom(v.ImagePath))
	if err := os.Remove(v.ImagePath); err != nil && !os.IsNotExist(err) {
		record(fmt.Errorf("removing luks image: %w", err))
	}

	return firstErr
}

// shred overwrites a file with random bytes before removing it. Used for
// the transient LUKS keyfile and any other single-use secret file.
func shred(path string) {
	_ = overwriteWithRandom(path)
	_ = os.Remove(path)
}

// overwriteWithRandom overwrites a file's existing contents with random
// bytes of the same length. If the file does not exist this is a no-op.
func overwriteWithRandom(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	const chunkSize = 1 << 20 // 1 MiB, matching the ephemeral repo's per-file cap.
	remaining := info.Size()
	buf := make([]byte, chunkSize)
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := rand.Read(buf[:n]); err != nil {
			return err
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return f.Sync()
}

// run executes a command, returning its combined stdout and stderr in
// the wrapped error on failure. It mirrors lib/git's Repository.Run.
func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w (output: %s)", name, args, err, string(output))
	}
	return nil
}
