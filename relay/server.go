// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const shutdownTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades every request to a websocket and hands the
// resulting connection to the hub. One request corresponds to one
// peer connection for the lifetime of that socket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newConnection(ws, s)
	s.register <- c
	go c.writePump()
	c.readPump()
}

// Listener is a bound HTTP+websocket endpoint for a Server, wiring
// together the hub goroutine (Run) and the HTTP accept loop the same
// way the Ephemeral Git Server pairs a bind-listener-early HTTP server
// with a background goroutine and an error channel for Stop to drain.
type Listener struct {
	Addr string

	server    *Server
	listener  net.Listener
	httpSrv   *http.Server
	serveDone chan error
	cancelRun context.CancelFunc
}

// Listen binds addr, starts the hub goroutine, and begins serving
// websocket connections. Call Stop to shut both down.
func Listen(addr string, server *Server) (*Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("relay: binding listener: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go server.Run(runCtx)

	httpSrv := &http.Server{
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveDone := make(chan error, 1)
	go func() {
		err := httpSrv.Serve(listener)
		if err == http.ErrServerClosed {
			err = nil
		}
		serveDone <- err
	}()

	return &Listener{
		Addr:      listener.Addr().String(),
		server:    server,
		listener:  listener,
		httpSrv:   httpSrv,
		serveDone: serveDone,
		cancelRun: cancel,
	}, nil
}

// Stop shuts the HTTP listener down and stops the hub goroutine.
func (l *Listener) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := l.httpSrv.Shutdown(shutdownCtx)
	<-l.serveDone
	l.cancelRun()
	if l.server.Store != nil {
		l.server.Store.Close()
	}
	if err != nil {
		return fmt.Errorf("relay: shutting down listener: %w", err)
	}
	return nil
}
