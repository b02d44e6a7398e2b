// Package lobby implements the in-memory membership and room registry:
// who is connected, which room they occupy, and the broadcast fan-out that
// keeps every member's view of the lobby current.
package lobby

import (
	"fmt"
	"sync"
)

// Outbox queues outbound frames for one member. A dedicated pump goroutine
// drains it to the member's connection, so broadcasts never block on a slow
// consumer; when the buffer is full the frame is dropped instead.
type Outbox struct {
	memberID string
	frames   chan any
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the given member.
//
// Precondition: memberID must be non-empty.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(memberID string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		memberID: memberID,
		frames:   make(chan any, bufferSize),
	}
}

// Push enqueues a frame without blocking.
//
// Postcondition: The frame is enqueued, or an error if the outbox is closed
// or full.
func (o *Outbox) Push(frame any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.memberID)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbox %s is full", o.memberID)
	}
}

// Frames returns the read-only frame channel drained by the member's pump.
func (o *Outbox) Frames() <-chan any {
	return o.frames
}

// Close marks the outbox closed and closes the frame channel, stopping the
// pump once the queue drains. Idempotent.
//
// Postcondition: Further Push calls return an error.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
