package store

import (
	"context"
	"sync"
)

// Call is the handle of a dispatched modifier execution.
type Call struct {
	instance ActionInstance
	done     chan struct{}
	once     sync.Once
	err      error
}

func newCall(inst ActionInstance) *Call {
	return &Call{instance: inst, done: make(chan struct{})}
}

func (c *Call) settle(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed once the call settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err returns the outcome of a settled call, nil while it is in flight.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the call settled or ctx is done. Giving up on ctx only
// stops waiting; the call keeps running and still applies its result.
func (c *Call) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Instance describes the execution this call tracks.
func (c *Call) Instance() ActionInstance {
	return c.instance.clone()
}
