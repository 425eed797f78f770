// Package refresh turns bursts of dataset refresh requests into a bounded,
// debounced stream of upstream calls. Each workspace:dataset key owns an
// independent state machine (idle, scheduled, running, running-with-pending);
// there is no cross-key coordination.
package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"embedgate.io/internal/obs"
)

// DefaultWindow is the coalescing window applied when none is configured.
const DefaultWindow = 90 * time.Second

// Coalescer spaces upstream refresh calls per resource key. Requests landing
// inside the window are deferred onto a single timer; requests landing while a
// call is in flight collapse into one pending re-run, never a backlog.
type Coalescer struct {
	upstream Upstream
	window   time.Duration
	now      func() time.Time
	onEvent  func(Event)

	mu     sync.Mutex
	states map[string]*keyState
}

// keyState is the per-key machine. Guarded by its own mutex, not a global one,
// so unrelated workspaces never serialize on each other.
type keyState struct {
	mu sync.Mutex

	workspaceID string
	datasetID   string

	running         bool
	pending         bool
	lastRequestedAt time.Time
	scheduledAt     time.Time
	timer           *time.Timer
}

// Option configures the Coalescer.
type Option func(*Coalescer)

// WithWindow overrides the coalescing window.
func WithWindow(window time.Duration) Option {
	return func(c *Coalescer) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithEventSink registers a callback invoked on every lifecycle transition.
// The callback must not block.
func WithEventSink(sink func(Event)) Option {
	return func(c *Coalescer) { c.onEvent = sink }
}

// withClock injects a clock for tests.
func withClock(now func() time.Time) Option {
	return func(c *Coalescer) { c.now = now }
}

// NewCoalescer constructs a Coalescer around the upstream client.
func NewCoalescer(upstream Upstream, opts ...Option) (*Coalescer, error) {
	if upstream == nil {
		return nil, errors.New("upstream client is required")
	}
	c := &Coalescer{
		upstream: upstream,
		window:   DefaultWindow,
		now:      func() time.Time { return time.Now().UTC() },
		states:   make(map[string]*keyState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Window returns the configured coalescing window.
func (c *Coalescer) Window() time.Duration { return c.window }

// RequestRefresh applies the per-key state machine to one request. On the
// immediate-run path the upstream error is returned to the caller; deferred
// runs surface errors through logs only, since nobody awaits them.
func (c *Coalescer) RequestRefresh(ctx context.Context, workspaceID, datasetID string) (Result, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	datasetID = strings.TrimSpace(datasetID)
	if workspaceID == "" || datasetID == "" {
		return Result{}, errors.New("workspace_id and dataset_id are required")
	}

	st := c.state(workspaceID, datasetID)

	st.mu.Lock()
	if st.running {
		// Fold into the pending flag: no second upstream call, no queue.
		st.pending = true
		st.mu.Unlock()
		return Result{Status: StatusRunning, Pending: true}, nil
	}
	if st.timer != nil {
		// A timer is already armed for this key; report its schedule instead
		// of arming a second one.
		res := Result{
			Status:        StatusScheduled,
			ScheduledAt:   st.scheduledAt,
			ScheduledInMs: max(st.scheduledAt.Sub(c.now()).Milliseconds(), 0),
		}
		st.mu.Unlock()
		return res, nil
	}

	now := c.now()
	if !st.lastRequestedAt.IsZero() {
		if elapsed := now.Sub(st.lastRequestedAt); elapsed < c.window {
			delay := c.window - elapsed
			st.scheduledAt = now.Add(delay)
			st.timer = time.AfterFunc(delay, func() { c.timerFired(st) })
			res := Result{
				Status:        StatusScheduled,
				ScheduledAt:   st.scheduledAt,
				ScheduledInMs: delay.Milliseconds(),
			}
			st.mu.Unlock()
			c.publish(st, EventScheduled)
			return res, nil
		}
	}

	st.running = true
	st.lastRequestedAt = now
	st.mu.Unlock()

	handle, err := c.callUpstream(ctx, st)
	// Completion handling (and any catch-up run) happens off the caller's
	// goroutine; new requests arriving before it runs still observe
	// running==true and fold into the pending flag.
	go c.finish(st)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusQueued, Refresh: &handle}, nil
}

// ListRefreshes passes the upstream refresh history through untouched.
func (c *Coalescer) ListRefreshes(ctx context.Context, workspaceID, datasetID string) ([]Record, error) {
	return c.upstream.ListRefreshHistory(ctx, workspaceID, datasetID)
}

// Close stops armed timers. Shutdown convenience only; it is not a
// cancellation API and scheduled work simply stops mattering with the process.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.states {
		st.mu.Lock()
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.mu.Unlock()
	}
}

// state returns the machine for a key, creating it lazily on first request.
func (c *Coalescer) state(workspaceID, datasetID string) *keyState {
	key := workspaceID + ":" + datasetID
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[key]
	if !ok {
		st = &keyState{workspaceID: workspaceID, datasetID: datasetID}
		c.states[key] = st
	}
	return st
}

// timerFired moves a key from scheduled to running and performs the deferred
// call. Errors here have no awaiting caller and are logged and swallowed.
func (c *Coalescer) timerFired(st *keyState) {
	st.mu.Lock()
	st.timer = nil
	st.scheduledAt = time.Time{}
	if st.running {
		st.pending = true
		st.mu.Unlock()
		return
	}
	st.running = true
	st.lastRequestedAt = c.now()
	st.mu.Unlock()

	if _, err := c.callUpstream(context.Background(), st); err != nil {
		c.logSwallowed(st, err)
	}
	c.finish(st)
}

// finish clears the running flag and drains the pending flag. The drain is an
// explicit loop, not recursion: each iteration either runs one catch-up call
// or arms one timer and stops. At most one catch-up run is produced per
// pending flag.
func (c *Coalescer) finish(st *keyState) {
	for {
		st.mu.Lock()
		st.running = false
		if !st.pending {
			st.mu.Unlock()
			return
		}
		st.pending = false

		now := c.now()
		if elapsed := now.Sub(st.lastRequestedAt); elapsed < c.window {
			delay := c.window - elapsed
			st.scheduledAt = now.Add(delay)
			st.timer = time.AfterFunc(delay, func() { c.timerFired(st) })
			st.mu.Unlock()
			c.publish(st, EventScheduled)
			return
		}

		st.running = true
		st.lastRequestedAt = now
		st.mu.Unlock()

		if _, err := c.callUpstream(context.Background(), st); err != nil {
			c.logSwallowed(st, err)
		}
	}
}

func (c *Coalescer) callUpstream(ctx context.Context, st *keyState) (Handle, error) {
	c.publish(st, EventQueued)
	handle, err := c.upstream.Refresh(ctx, st.workspaceID, st.datasetID)
	if err != nil {
		obs.ObserveUpstreamRefresh("error")
		c.publish(st, EventFailed)
		return Handle{}, err
	}
	obs.ObserveUpstreamRefresh("ok")
	c.publish(st, EventCompleted)
	return handle, nil
}

func (c *Coalescer) publish(st *keyState, kind string) {
	if c.onEvent == nil {
		return
	}
	c.onEvent(Event{
		WorkspaceID: st.workspaceID,
		DatasetID:   st.datasetID,
		Kind:        kind,
		At:          c.now(),
	})
}

func (c *Coalescer) logSwallowed(st *keyState, err error) {
	obs.LogEvent(map[string]any{
		"level":        "error",
		"msg":          "deferred refresh failed",
		"workspace_id": st.workspaceID,
		"dataset_id":   st.datasetID,
		"error":        err.Error(),
	})
}
