// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hokierr centralizes the named error kinds the flows
// (cmd/hokipoki, cmd/hokipoki-provider) use to decide exit codes and
// remedial messaging. Lower-level packages keep their own
// package-scoped sentinels (identity.ErrReauthenticate,
// toolcred.ErrReauthRequired, ...) in the same style the teacher uses
// throughout its own lib/ packages; hokierr does not replace those,
// it classifies them. ClassifyKind(err) maps any error — hokierr's own
// sentinels or one already defined by identity/toolcred — onto one of
// the kinds spec §7 names, and Remedy(err) returns the exact remedial
// command a Kind's policy calls for surfacing to the user.
package hokierr
