// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the requester-provider connectivity
// fallback used when neither side can reach the reverse tunnel that
// exposes the ephemeral git server.
//
// The package defines two interfaces: [Listener] accepts inbound
// connections (Serve, Address, Close), and [Dialer] establishes
// outbound connections (DialContext). [TCPListener]/[TCPDialer] are
// the plain direct-TCP implementation the ephemeral git server binds
// to on an OS-assigned port on all interfaces.
//
// [WebRTCTransport] is the NAT-traversal implementation, used when the
// provider's network blocks the reverse tunnel entirely: it uses
// pion/webrtc data channels with ICE/TURN, and a matched
// requester/provider pair shares a single PeerConnection with
// SCTP-multiplexed data channels. [WebRTCTransport] implements both
// Listener and Dialer on a single instance.
//
// [HTTPTransport] wraps a Dialer as an http.RoundTripper for
// integration with standard HTTP client code.
//
// Signaling is abstracted behind the [Signaler] interface, which
// publishes and polls SDP offers and answers. The relay is the
// production signaling channel — [lib/tunnel.RelaySignaler] republishes
// offers/answers as ordinary p2p_relay payloads between the two peers
// the relay has already matched and authenticated, so no separate
// signaling credential is needed. [MemorySignaler] provides an
// in-process implementation for tests. [SignalMessage] carries the SDP
// payload and ICE candidates in vanilla ICE mode (all candidates
// gathered before signaling).
//
// When both peers attempt to connect simultaneously, a deterministic
// tie-breaking rule resolves the conflict: the peer whose localpart
// (its relay-assigned peer ID) is lexicographically smaller becomes
// the offerer, and the other peer drops its redundant PeerConnection.
//
// [ICEConfig] holds STUN/TURN server configuration. [DataChannelConn]
// wraps a detached pion data channel as a net.Conn with deadline support.
package transport
