// Package testutil provides test helpers for driving the lobby over real
// WebSocket connections.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// LobbyClient is a WebSocket test client for integration testing.
type LobbyClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// DialLobby connects to the lobby endpoint of the server at baseURL
// ("http://host:port"), passing token and name as query parameters.
// Empty values are omitted from the query string.
//
// Precondition: baseURL must point at a listening lobby server.
// Postcondition: Returns a connected LobbyClient or fails the test.
func DialLobby(t *testing.T, baseURL, token, name string) *LobbyClient {
	t.Helper()
	start := time.Now()

	target := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/lobby/ws"
	query := url.Values{}
	if token != "" {
		query.Set("token", token)
	}
	if name != "" {
		query.Set("name", name)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", target, err, time.Since(start))
	}

	client := &LobbyClient{conn: conn, t: t}
	t.Cleanup(client.Close)

	t.Logf("lobby client connected to %s [%s]", target, time.Since(start))
	return client
}

// Send writes one client message with the given type tag and extra fields.
//
// Precondition: fields must not carry its own "type" key.
func (c *LobbyClient) Send(msgType string, fields map[string]any) {
	c.t.Helper()

	msg := map[string]any{"type": msgType}
	for k, v := range fields {
		msg[k] = v
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("encoding %s message: %v", msgType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.t.Fatalf("sending %s message: %v", msgType, err)
	}
}

// ReadFrame reads and decodes a single frame.
//
// Postcondition: Returns the decoded frame, or fails the test on error or timeout.
func (c *LobbyClient) ReadFrame(timeout time.Duration) map[string]any {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, data, err := c.conn.Read(ctx)
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		c.t.Fatalf("decoding frame %q: %v", data, err)
	}
	return frame
}

// ReadUntilType reads frames until one carries the wanted type tag,
// discarding interleaved broadcasts.
//
// Precondition: frameType must be non-empty.
// Postcondition: Returns the first matching frame, or fails on timeout.
func (c *LobbyClient) ReadUntilType(frameType string, timeout time.Duration) map[string]any {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("no %q frame within %s", frameType, timeout)
		}
		frame := c.ReadFrame(remaining)
		if frame["type"] == frameType {
			return frame
		}
	}
}

// ExpectClose reads until the server closes the connection and returns the
// close frame's code and reason.
//
// Postcondition: Returns the peer's close error, or fails the test if the
// connection ends without one.
func (c *LobbyClient) ExpectClose(timeout time.Duration) websocket.CloseError {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		_, _, err := c.conn.Read(ctx)
		if err == nil {
			continue
		}
		var closeErr websocket.CloseError
		if !errors.As(err, &closeErr) {
			c.t.Fatalf("connection ended without close frame: %v", err)
		}
		return closeErr
	}
}

// Close closes the underlying connection. Safe to call more than once.
func (c *LobbyClient) Close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
