// Package client implements the LEO client engine: the handshake
// initiator and a FIFO request/response correlator over one connection,
// per spec §4.6.
package client

import (
	"container/list"
	"fmt"
	"sync"
)

// ErrTransportClosed is delivered to every pending waiter when the
// underlying connection is torn down.
var ErrTransportClosed = fmt.Errorf("client: transport closed")

// waiter is one pending request's delivery channel. It stays at the head
// of the correlator's queue until the caller explicitly Pops it, which
// lets a single logical request (GET) receive several inbound messages
// (GET_META, N x GET_CHUNK, GET_END) before being retired.
type waiter struct {
	ch chan interface{}
}

// Correlator is a FIFO of pending waiters matching spec §4.6's and §9's
// description: commands are strictly sequential per connection, so each
// inbound message is routed to whichever waiter is currently at the head
// of the queue.
type Correlator struct {
	mu       sync.Mutex
	waiters  *list.List // of *waiter
	closed   bool
	closeErr error
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{waiters: list.New()}
}

// Push enqueues a new waiter and returns the channel it will receive
// messages on. Messages keep arriving on this channel until the caller
// calls Pop.
func (c *Correlator) Push() (<-chan interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, c.closeErr
	}

	w := &waiter{ch: make(chan interface{}, 8)}
	c.waiters.PushBack(w)
	return w.ch, nil
}

// Pop retires the head waiter, so the next Dispatch routes to whichever
// waiter was pushed after it.
func (c *Correlator) Pop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if front := c.waiters.Front(); front != nil {
		w := front.Value.(*waiter)
		close(w.ch)
		c.waiters.Remove(front)
	}
}

// Dispatch routes one inbound message to the head waiter without popping
// it. If no waiter is queued, the message is dropped; it is not kept for
// a later waiter.
func (c *Correlator) Dispatch(msg interface{}) {
	c.mu.Lock()
	front := c.waiters.Front()
	c.mu.Unlock()

	if front == nil {
		return
	}
	front.Value.(*waiter).ch <- msg
}

// CloseWithError rejects every pending waiter with err and marks the
// correlator closed; subsequent Push calls fail immediately.
func (c *Correlator) CloseWithError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err

	for e := c.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.ch <- err
		close(w.ch)
	}
	c.waiters.Init()
}
