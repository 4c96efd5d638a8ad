// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package p2p defines the payload shapes exchanged over the relay's
// p2p_relay channel (relay.P2PRelayFrame) between a matched requester
// and provider. The relay treats these payloads as opaque; this
// package is where the two ends agree on what "opaque" actually
// contains.
package p2p
