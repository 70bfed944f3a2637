// Package admission bounds how many orchestration runs execute at once.
package admission

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("admission controller closed")

// Stats is a point-in-time view of slot usage.
type Stats struct {
	Capacity  int `json:"capacity"`
	Active    int `json:"active"`
	Available int `json:"available"`
	Waiting   int `json:"waiting"`
}

// Controller is a counting gate with a fixed capacity. Waiters are admitted
// in arrival order.
type Controller struct {
	capacity int
	sem      *semaphore.Weighted

	active  atomic.Int64
	waiting atomic.Int64
	closed  atomic.Bool

	done     context.Context
	shutdown context.CancelFunc
}

func New(capacity int) *Controller {
	if capacity < 1 {
		capacity = 1
	}
	done, cancel := context.WithCancel(context.Background())
	return &Controller{
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
		done:     done,
		shutdown: cancel,
	}
}

// Acquire blocks until a slot is free. It returns ErrClosed once Close has
// been called, or ctx.Err() if ctx ends first.
func (c *Controller) Acquire(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.done, cancel)
	defer stop()

	c.waiting.Add(1)
	err := c.sem.Acquire(ctx, 1)
	c.waiting.Add(-1)

	if err != nil {
		if c.closed.Load() {
			return ErrClosed
		}
		return err
	}

	if c.closed.Load() {
		c.sem.Release(1)
		return ErrClosed
	}

	c.active.Add(1)
	return nil
}

// Release returns a slot taken by a successful Acquire.
func (c *Controller) Release() {
	c.active.Add(-1)
	c.sem.Release(1)
}

// Close rejects future acquires and wakes every waiter with ErrClosed.
// Slots already held stay valid until released.
func (c *Controller) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.shutdown()
	}
}

func (c *Controller) Closed() bool {
	return c.closed.Load()
}

func (c *Controller) Stats() Stats {
	active := int(c.active.Load())
	return Stats{
		Capacity:  c.capacity,
		Active:    active,
		Available: c.capacity - active,
		Waiting:   int(c.waiting.Load()),
	}
}
