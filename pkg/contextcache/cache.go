// Package contextcache keeps the most recent foreground-application name and
// process count, refreshed on a fixed interval by a dedicated goroutine so the
// input callback path only ever copies a cached value.
package contextcache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/offlinefirst/behavioral-capture/pkg/events"
	"github.com/offlinefirst/behavioral-capture/pkg/logging"
)

// UnknownApp is reported until an active-app query first succeeds.
const UnknownApp = events.UnknownApp

// DefaultInterval is the refresh cadence when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Snapshot is the cached environmental context.
type Snapshot struct {
	ActiveApp          string
	BackgroundAppCount int
	CapturedAt         time.Time
}

// AppQuery returns the foreground application name.
type AppQuery func() (string, error)

// CountQuery returns the running process count.
type CountQuery func() (int, error)

// Options configure the cache.
type Options struct {
	ActiveApp    AppQuery
	ProcessCount CountQuery
	Interval     time.Duration
	Clock        func() time.Time
	Logger       *slog.Logger
}

// Cache is written only by its refresh loop (or explicit Refresh calls) and
// read by any number of goroutines.
type Cache struct {
	activeApp    AppQuery
	processCount CountQuery
	interval     time.Duration
	clock        func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	snapshot Snapshot

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
}

// New validates options and returns a cache holding default values.
func New(opts Options) (*Cache, error) {
	if opts.ActiveApp == nil {
		return nil, errors.New("active app query must be provided")
	}
	if opts.ProcessCount == nil {
		return nil, errors.New("process count query must be provided")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		activeApp:    opts.ActiveApp,
		processCount: opts.ProcessCount,
		interval:     interval,
		clock:        clock,
		logger:       logger,
		snapshot:     Snapshot{ActiveApp: UnknownApp},
	}, nil
}

// Read returns the latest snapshot.
func (c *Cache) Read() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Refresh queries the host and replaces the snapshot. A failing query keeps
// the previous value for its field; failures are never returned.
func (c *Cache) Refresh() {
	app, appErr := c.activeApp()
	count, countErr := c.processCount()
	if appErr != nil {
		c.logger.Debug("active app query failed", "error", appErr)
	}
	if countErr != nil {
		c.logger.Debug("process count query failed", "error", countErr)
	}
	if appErr != nil && countErr != nil {
		return
	}
	now := c.clock()

	c.mu.Lock()
	next := c.snapshot
	if appErr == nil && app != "" {
		next.ActiveApp = app
	}
	if countErr == nil && count >= 0 {
		next.BackgroundAppCount = count
	}
	next.CapturedAt = now
	c.snapshot = next
	c.mu.Unlock()
}

// Start launches the refresh loop. Calling Start on a running cache is a no-op.
func (c *Cache) Start() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop(c.stop, c.done)
}

// Stop signals the loop and blocks until it has exited. It is idempotent.
func (c *Cache) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

// Running reports whether the refresh loop is active.
func (c *Cache) Running() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.stop != nil
}

func (c *Cache) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(c.interval)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		c.Refresh()
		timer.Reset(c.interval)
	}
}
