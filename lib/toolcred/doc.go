// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolcred implements the Tool-Credential Adapter: a
// table-driven set of per-AI-CLI strategies for acquiring and
// freshness-checking the credential each tool needs, and for producing
// the double-encoded opaque blob the Sandbox Executor later injects
// into the container.
//
// Each strategy knows how to read its tool's own native credential
// store (a subprocess's stdout, or a JSON file written by the tool's
// own "…login"/"setup-token" command) and how to judge whether the
// result is still usable. For codex and gemini, Authenticate never
// runs an interactive login; it surfaces ErrReauthRequired so the
// caller can instruct the operator to run the native login command.
// For claude, Authenticate itself runs the interactive
// `claude setup-token` subprocess.
package toolcred
