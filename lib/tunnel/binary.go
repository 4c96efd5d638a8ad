// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/hokipoki/hokipoki/lib/binhash"
	"github.com/zeebo/blake3"
)

func lookPath(binaryName string) (string, error) {
	return exec.LookPath(binaryName)
}

// ErrUnsupportedPlatform is returned by ensureBinary when no release
// exists for the running GOOS/GOARCH.
var ErrUnsupportedPlatform = errors.New("tunnel: no release for this platform")

// releaseEntry pins a download URL and its expected BLAKE3 digest for
// one {GOOS, GOARCH} pair.
type releaseEntry struct {
	URL    string
	Digest [32]byte
}

// releaseManifest maps "GOOS/GOARCH" to its pinned release. Populated
// at deployment time by whoever cuts a tunnel client release; left
// empty here since the actual URLs and digests are operator-specific
// configuration, not something this package can know in advance.
var releaseManifest = map[string]releaseEntry{}

func platformKey() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// binDir returns <homeDir>/.hokipoki/bin, creating it if necessary.
func binDir(homeDir string) (string, error) {
	dir := filepath.Join(homeDir, ".hokipoki", "bin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("tunnel: creating bin dir: %w", err)
	}
	return dir, nil
}

// ensureBinary locates the tunnel client executable in PATH, or
// downloads and verifies the release pinned for the running platform
// into <homeDir>/.hokipoki/bin/, returning its path.
func ensureBinary(ctx context.Context, client *http.Client, homeDir string, binaryName string) (string, error) {
	if path, err := lookPath(binaryName); err == nil {
		return path, nil
	}

	dir, err := binDir(homeDir)
	if err != nil {
		return "", err
	}
	destination := filepath.Join(dir, binaryName)

	if _, err := os.Stat(destination); err == nil {
		if err := verifyBinary(destination); err == nil {
			return destination, nil
		}
		// Fall through and re-download a corrupted or stale cached copy.
	}

	entry, ok := releaseManifest[platformKey()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platformKey())
	}

	if err := downloadBinary(ctx, client, entry.URL, destination); err != nil {
		return "", err
	}

	digest, err := hashBinary(destination)
	if err != nil {
		return "", err
	}
	if digest != entry.Digest {
		os.Remove(destination)
		return "", fmt.Errorf("tunnel: downloaded binary digest %s does not match pinned %s",
			binhash.FormatDigest(digest), binhash.FormatDigest(entry.Digest))
	}

	return destination, nil
}

func verifyBinary(path string) error {
	entry, ok := releaseManifest[platformKey()]
	if !ok {
		return nil // no pinned digest to check against, trust the cache
	}
	digest, err := hashBinary(path)
	if err != nil {
		return err
	}
	if digest != entry.Digest {
		return fmt.Errorf("tunnel: cached binary at %s failed digest verification", path)
	}
	return nil
}

// hashBinary computes the BLAKE3 digest of the file at path, streamed
// in constant memory. Mirrors lib/binhash.HashFile's shape, adapted
// from SHA256 to BLAKE3 since the pinned release manifest is keyed on
// BLAKE3 digests.
func hashBinary(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("tunnel: opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("tunnel: hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

func downloadBinary(ctx context.Context, client *http.Client, url, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("tunnel: building download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("tunnel: downloading tunnel binary: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tunnel: downloading tunnel binary: unexpected status %s", resp.Status)
	}

	out, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("tunnel: creating %s: %w", destination, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(destination)
		return fmt.Errorf("tunnel: writing %s: %w", destination, err)
	}
	return nil
}
