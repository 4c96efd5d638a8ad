// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitserver stands up a short-lived, single-task git-smart-HTTP
// service on the requester host: a bare repository seeded with the
// task's input files, served behind a one-time bearer token and a
// reverse tunnel, so a provider behind NAT can clone and push back a
// single commit.
//
// The lifecycle is Initialize (materialize the bare repo and its
// initial commit), Start (bind the HTTP listener and open the tunnel),
// GetChanges (extract the pushed commit as a unified diff, splitting
// any AI_OUTPUT.md section out as review text), and Stop (tear the
// tunnel and listener down, shred every file in the repo tree, and
// remove the directory).
package gitserver
