package capture

import (
	"context"
	"sync"
)

// Controller coordinates pause/resume/kill signals between the recorder and
// whoever drives its lifecycle.
type Controller struct {
	mu       sync.Mutex
	paused   bool
	stopping bool
	stopErr  error
	signal   chan struct{}
	done     chan struct{}
}

// NewController constructs a controller in the running state.
func NewController() *Controller {
	return &Controller{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Pause transitions the controller into a paused state.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume clears a paused state and notifies waiters.
func (c *Controller) Resume() {
	c.mu.Lock()
	alreadyRunning := !c.paused
	c.paused = false
	c.mu.Unlock()
	if !alreadyRunning {
		c.notify()
	}
}

// Kill requests the capture to stop and records the first non-nil error.
func (c *Controller) Kill(err error) {
	c.mu.Lock()
	if !c.stopping {
		c.stopping = true
		close(c.done)
	}
	if err != nil && c.stopErr == nil {
		c.stopErr = err
	}
	c.mu.Unlock()
	c.notify()
}

// Done is closed by the first Kill.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the error passed to Kill, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopErr
}

// Running reports whether input should currently be recorded.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.paused && !c.stopping
}

// Wait blocks while the controller is paused. It returns nil once running,
// the Kill error (or context.Canceled) once stopping, and ctx.Err() when ctx
// ends first. Cancelling ctx does not stop the controller.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		paused := c.paused
		stopping := c.stopping
		stopErr := c.stopErr
		c.mu.Unlock()

		if stopping {
			if stopErr != nil {
				return stopErr
			}
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return context.Canceled
		}
		if !paused {
			return nil
		}

		if ctx == nil {
			<-c.signal
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.signal:
			continue
		}
	}
}

// State reports the textual state for diagnostics.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.stopping:
		return "stopping"
	case c.paused:
		return "paused"
	default:
		return "running"
	}
}

func (c *Controller) notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}
