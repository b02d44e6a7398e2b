// Package ws wraps WebSocket connections with the JSON frame discipline the
// session loop expects: deadline-bounded receives that leave the connection
// open, serialized writes, and protocol close codes.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
	"nhooyr.io/websocket"

	"github.com/geodesic-gg/lobby/internal/config"
	"github.com/geodesic-gg/lobby/internal/protocol"
)

// ErrDeadline reports that a Receive wait elapsed with no inbound frame.
// The connection is still healthy; the caller decides whether to retry
// or close.
var ErrDeadline = errors.New("receive deadline elapsed")

// Conn wraps a WebSocket connection. Inbound frames are pulled by a single
// reader goroutine so that a Receive deadline expires without tearing down
// the transport, and sends are serialized with a mutex so the session loop
// and broadcast pump can share the connection.
type Conn struct {
	raw          *websocket.Conn
	writeTimeout time.Duration

	readOnce  sync.Once
	reads     chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	readErr error
}

// Accept upgrades the HTTP request to a WebSocket connection. Origin hosts
// are checked against cfg.AllowedOrigins; a lone "*" disables the check.
//
// Postcondition: Returns a Conn ready for Receive and Send, or an error if
// the handshake failed (the HTTP response is already written in that case).
func Accept(w http.ResponseWriter, r *http.Request, cfg config.ServerConfig) (*Conn, error) {
	opts := &websocket.AcceptOptions{}
	if lo.Contains(cfg.AllowedOrigins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = cfg.AllowedOrigins
	}

	raw, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, fmt.Errorf("upgrading connection: %w", err)
	}
	return NewConn(raw, cfg.WriteTimeout), nil
}

// NewConn wraps an already established WebSocket connection. Used by the
// server after Accept and by clients after Dial.
func NewConn(raw *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		writeTimeout: writeTimeout,
		reads:        make(chan []byte),
		done:         make(chan struct{}),
	}
}

// Receive returns the next inbound frame payload, waiting at most wait
// (no bound when wait <= 0).
//
// Postcondition: Returns the payload; ErrDeadline when the wait elapsed
// with the connection still open; any other error means the connection is
// no longer usable.
func (c *Conn) Receive(ctx context.Context, wait time.Duration) ([]byte, error) {
	c.readOnce.Do(func() { go c.readLoop() })

	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case data, ok := <-c.reads:
		if !ok {
			return nil, fmt.Errorf("reading frame: %w", c.readError())
		}
		return data, nil
	case <-deadline:
		return nil, ErrDeadline
	case <-ctx.Done():
		return nil, fmt.Errorf("reading frame: %w", ctx.Err())
	}
}

// readLoop pulls frames off the wire one at a time, handing each to the
// pending Receive before reading the next. It exits when the connection
// errors or Close is called, closing the reads channel either way.
func (c *Conn) readLoop() {
	defer close(c.reads)
	for {
		_, data, err := c.raw.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
		select {
		case c.reads <- data:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) readError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return errors.New("connection closed")
}

// Send marshals v to JSON and writes it as one text frame, bounded by the
// configured write timeout. Safe for concurrent use.
func (c *Conn) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	writeCtx := ctx
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	if err := c.raw.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close performs the closing handshake with the given code and reason and
// releases the reader. Safe to call more than once.
func (c *Conn) Close(code protocol.CloseCode, reason string) error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.raw.Close(websocket.StatusCode(code), reason)
}
