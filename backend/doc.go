// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend is the REST client for the marketplace backend
// (default https://api.hoki-poki.ai): auth verification, profile,
// tunnel token issuance, provider tool registration, and task
// bookkeeping. Every call is bearer-authenticated with the caller's
// identity token except CheckVerified, which runs during login before
// a session exists.
package backend
