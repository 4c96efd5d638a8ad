// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package app holds the bootstrap wiring shared by the requester and
// provider flow binaries (cmd/hokipoki, cmd/hokipoki-provider): reading
// the fixed set of environment variables, constructing the Token
// Vault/Identity Agent/Tunnel Client/Backend Client stack, and the
// exit-code convention both flows use.
package app
