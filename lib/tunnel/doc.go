// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tunnel locates or downloads a reverse-tunnel client binary and
// uses it to expose a local TCP port behind a public URL.
//
// ensureBinary resolves the tunnel client in PATH, or downloads the
// release matching the running GOOS/GOARCH into <home>/.hokipoki/bin/,
// verifying its BLAKE3 digest against a pinned manifest before it is
// ever executed.
//
// Client.Open spawns the binary against a generated per-tunnel config
// file and returns a Handle carrying the public URL and a close
// function that kills the process and removes the config. When the
// binary cannot be located, or the spawned process exits within a short
// startup window, a Client with a Fallback falls back to negotiating a direct
// WebRTC data channel (package transport) over a caller-supplied
// Signaler, and bridges it to a local HTTP listener so the rest of the
// system sees an ordinary public URL either way.
package tunnel
