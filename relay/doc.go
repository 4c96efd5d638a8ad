// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay implements the central matching and message-forwarding
// service that pairs requesters with providers: a single bidirectional
// JSON-framed websocket channel per peer, one frame per message,
// {type, ...} shaped exactly as documented on each frame struct in
// frames.go.
//
// Server accepts inbound websocket connections and hands each one to a
// per-connection reader/writer goroutine pair; decoded frames are
// pushed onto a single hub goroutine that owns the peer table and the
// task table, so every mutation to shared state happens on one
// goroutine without locks — the same "one dispatch loop owns state"
// discipline the identity provider's own long-poll dispatch loop uses,
// adapted here from long-polling to a persistent socket.
//
// Client is the counterpart used by the Requester and Provider flows:
// it dials a Server, performs the authenticate handshake, and exposes
// a typed Send/Recv pair over the same frame set.
package relay
