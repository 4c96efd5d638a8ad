// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is the dial-side counterpart to Server, used by the
// Requester and Provider flows. It performs the authenticate handshake
// on Dial and exposes a typed Send/Recv pair over the same frame set
// defined in frames.go.
type Client struct {
	PeerID string

	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to a relay at url (ws:// or wss://), sends the
// mandatory authenticate frame, and waits for connection_confirmed.
// The returned Client's PeerID is the one the relay assigned.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dialing %s: %w", url, err)
	}

	c := &Client{conn: conn}
	if err := c.Send(AuthenticateFrame{Type: FrameAuthenticate, Token: token}); err != nil {
		conn.Close()
		return nil, err
	}

	frameType, raw, err := c.Recv()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if frameType != FrameConnectionConfirmed {
		conn.Close()
		return nil, fmt.Errorf("relay: expected connection_confirmed, got %q", frameType)
	}
	var confirmed ConnectionConfirmedFrame
	if err := json.Unmarshal(raw, &confirmed); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay: decoding connection_confirmed: %w", err)
	}

	c.PeerID = confirmed.PeerID
	return c, nil
}

// Send marshals and writes a single frame. Safe for concurrent use.
func (c *Client) Send(frame any) error {
	data, err := marshalFrame(frame)
	if err != nil {
		return fmt.Errorf("relay: encoding frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("relay: writing frame: %w", err)
	}
	return nil
}

// Recv blocks for the next frame and returns its type alongside the
// raw JSON so the caller can decode into the concrete frame struct
// matching that type. Not safe for concurrent use by multiple readers.
func (c *Client) Recv() (string, []byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", nil, fmt.Errorf("relay: reading frame: %w", err)
	}
	frameType, err := decodeType(data)
	if err != nil {
		return "", nil, fmt.Errorf("relay: decoding frame type: %w", err)
	}
	return frameType, data, nil
}

// Close terminates the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
