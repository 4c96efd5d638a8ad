// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = pongTimeout * 9 / 10
	sendBuffer   = 32
)

// connection wraps one accepted websocket and the goroutine pair that
// pumps frames between the socket and the hub. connection itself owns
// no marketplace state — every field the hub cares about (role, peer
// ID, tools) lives on the peer record the hub creates once
// authentication succeeds.
type connection struct {
	ws   *websocket.Conn
	hub  *Server
	send chan []byte

	// peerID is empty until the hub processes this connection's
	// authenticate frame. Only the hub goroutine writes it; nothing in
	// conn.go reads it.
	peerID string
}

func newConnection(ws *websocket.Conn, hub *Server) *connection {
	return &connection{
		ws:   ws,
		hub:  hub,
		send: make(chan []byte, sendBuffer),
	}
}

// readPump decodes frames off the socket and hands them to the hub
// until the socket errors or closes. Must run in its own goroutine.
func (c *connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()

	c.ws.SetReadLimit(1 << 20)
	c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.hub.inbound <- inboundFrame{conn: c, data: data}
	}
}

// writePump drains the connection's send channel to the socket and
// sends periodic pings to keep NAT/load-balancer state alive. Must run
// in its own goroutine.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendFrame marshals and enqueues a frame for delivery. Non-blocking:
// a full send buffer means the peer is not draining fast enough, and
// the connection is dropped rather than letting the hub block.
func (c *connection) sendFrame(frame any) bool {
	data, err := marshalFrame(frame)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.ws.Close()
		return false
	}
}
