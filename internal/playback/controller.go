// Package playback advances a visible-window index over a time series on a
// fixed interval, with pause and manual scrubbing.
package playback

import (
	"sync"
	"time"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

// DefaultInterval is the time between playback ticks.
const DefaultInterval = 300 * time.Millisecond

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for ticking.
func WithClock(c timeutil.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithInterval sets the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.interval = d
		}
	}
}

// WithOnChange registers a callback invoked after every state change,
// outside the controller's lock.
func WithOnChange(f func(chart.PlaybackState)) Option {
	return func(ctl *Controller) { ctl.onChange = f }
}

// Controller owns one playback timer. At most one ticker is live at a time;
// every Play, Pause, Scrub and Close stops the previous one before acting.
type Controller struct {
	clock    timeutil.Clock
	interval time.Duration
	onChange func(chart.PlaybackState)

	mu     sync.Mutex
	state  chart.PlaybackState
	length int
	ticker timeutil.Ticker
	stop   chan struct{}
	closed bool
}

// New returns a stopped controller at index 0 for a series of length points.
func New(length int, opts ...Option) *Controller {
	c := &Controller{
		clock:    timeutil.RealClock{},
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(c)
	}
	if length > 0 {
		c.length = length
	}
	return c
}

// State returns the current playback state.
func (c *Controller) State() chart.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Length returns the number of points playback runs over.
func (c *Controller) Length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.length
}

// Play starts advancing the index by one per tick. Playing from the end
// restarts at 0. Play on an empty series or a closed controller does nothing.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.closed || c.length == 0 {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	if c.state.Index >= c.length {
		c.state.Index = 0
	}
	c.state.Playing = true

	ticker := c.clock.NewTicker(c.interval)
	stop := make(chan struct{})
	c.ticker = ticker
	c.stop = stop
	st := c.state
	c.mu.Unlock()

	go c.run(ticker, stop)
	c.notify(st)
}

// Pause stops the timer and keeps the current index.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.state.Playing = false
	st := c.state
	c.mu.Unlock()
	c.notify(st)
}

// Scrub stops the timer and jumps to index, clamped to [0, length].
func (c *Controller) Scrub(index int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.state = chart.PlaybackState{Index: clamp(index, c.length)}
	st := c.state
	c.mu.Unlock()
	c.notify(st)
}

// SetLength updates the number of points, for example after the date range
// changes. The index is clamped into the new range and a running timer stops
// if the index already reached the end.
func (c *Controller) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	if c.length == n {
		c.mu.Unlock()
		return
	}
	c.length = n
	c.state.Index = clamp(c.state.Index, n)
	if c.state.Playing && c.state.Index >= n {
		c.stopLocked()
		c.state.Playing = false
	}
	st := c.state
	c.mu.Unlock()
	c.notify(st)
}

// Close stops the timer for good. Later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.state.Playing = false
	c.closed = true
}

func (c *Controller) stopLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Controller) run(ticker timeutil.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
		}

		c.mu.Lock()
		if c.stop != stop {
			// Superseded between the tick and taking the lock.
			c.mu.Unlock()
			return
		}
		c.state.Index++
		done := c.state.Index >= c.length
		if done {
			c.state.Index = c.length
			c.state.Playing = false
			c.stopLocked()
		}
		st := c.state
		c.mu.Unlock()

		monitoring.PlaybackTicks.Inc()
		c.notify(st)
		if done {
			return
		}
	}
}

func (c *Controller) notify(st chart.PlaybackState) {
	if c.onChange != nil {
		c.onChange(st)
	}
}

func clamp(i, n int) int {
	switch {
	case i < 0:
		return 0
	case i > n:
		return n
	}
	return i
}
