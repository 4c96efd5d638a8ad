// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http/httputil"
	"net/url"

	"github.com/hokipoki/hokipoki/transport"
)

// WebRTCFallback negotiates a direct pion/webrtc data channel between
// this machine and its peer, using the Relay as the signaling channel
// (Signaler), and bridges it to a local HTTP proxy so the rest of the
// system can keep treating the tunnel as an ordinary reachable URL.
//
// The public URL this path produces is a "webrtc:<localpart>/<subdomain>"
// pseudo-URL, not a resolvable DNS name — it is only ever consumed by
// the peer that shares the same Signaler and therefore knows how to
// dial it as a WebRTC address instead of an HTTP one.
type WebRTCFallback struct {
	Signaler  transport.Signaler
	Localpart string
	ICEConfig transport.ICEConfig
	Logger    *slog.Logger

	transport *transport.WebRTCTransport
}

func (f *WebRTCFallback) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Open starts serving localPort over a WebRTC data channel and returns
// a Handle carrying the synthetic pseudo-URL.
func (f *WebRTCFallback) Open(ctx context.Context, localPort int, subdomain string) (*Handle, error) {
	wt := transport.NewWebRTCTransport(f.Signaler, f.Localpart, f.ICEConfig, f.logger())
	f.transport = wt

	target := &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", localPort)}
	proxy := httputil.NewSingleHostReverseProxy(target)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- wt.Serve(ctx, proxy)
	}()

	select {
	case <-wt.Ready():
	case err := <-serveErr:
		return nil, fmt.Errorf("tunnel: webrtc fallback failed to start: %w", err)
	}

	publicURL := fmt.Sprintf("webrtc:%s/%s", f.Localpart, subdomain)
	closeFn := func() error {
		return wt.Close()
	}

	return &Handle{PublicURL: publicURL, Close: closeFn}, nil
}

// Dial opens an outbound connection to a peer's WebRTC fallback tunnel,
// for the side that received a "webrtc:<localpart>/<subdomain>"
// pseudo-URL and needs to actually reach it.
func (f *WebRTCFallback) Dial(ctx context.Context, peerLocalpart string) (net.Conn, error) {
	wt := transport.NewWebRTCTransport(f.Signaler, f.Localpart, f.ICEConfig, f.logger())
	return wt.DialContext(ctx, peerLocalpart)
}
