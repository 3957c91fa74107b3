package sync

import (
	"context"
	gosync "sync"
	"time"
)

// DefaultInterval is how often the background runner syncs.
const DefaultInterval = 5 * time.Minute

// passTimeout bounds a single background pass.
const passTimeout = 2 * time.Minute

// RunState represents the current state of the background runner.
type RunState int

const (
	RunIdle RunState = iota
	RunRunning
	RunError
)

func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunRunning:
		return "running"
	case RunError:
		return "error"
	}
	return "unknown"
}

// Status is a snapshot of the background runner.
type Status struct {
	State    RunState
	LastSync time.Time
	LastRun  time.Time
	Message  string
}

// Runner synchronizes on a fixed interval and on demand. Ticks that find
// the device offline or the token invalid are skipped without noise.
type Runner struct {
	engine   *Engine
	interval time.Duration

	resultCh  chan Result
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      gosync.Mutex
	running bool
	status  Status
}

// NewRunner creates a Runner. A non-positive interval selects
// DefaultInterval.
func NewRunner(engine *Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		engine:    engine,
		interval:  interval,
		resultCh:  make(chan Result, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine. Calling Start on a running Runner
// is a no-op; a stopped Runner can be started again.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.loop(ctx, r.stopCh, r.doneCh)
}

// Stop halts the polling goroutine and waits for an in-flight pass to end.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	<-done
}

// Trigger requests an immediate pass. Requests made while one is already
// waiting are coalesced.
func (r *Runner) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Results delivers the outcome of every background pass. Results are
// dropped when nobody reads them.
func (r *Runner) Results() <-chan Result {
	return r.resultCh
}

// Status returns the current runner status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		case <-r.triggerCh:
			r.tick(ctx)
		}
	}
}

// tick runs one pass when the device is online and the token is valid.
func (r *Runner) tick(ctx context.Context) {
	e := r.engine
	if !e.oracle.Online(ctx) || !e.creds.Valid() {
		e.log.Debugw("Background sync skipped: offline or signed out")
		return
	}

	r.setStatus(RunRunning, "")

	passCtx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	result := e.Synchronize(passCtx, Options{SkipOnOffline: true, Silent: true})
	if result.Success {
		r.setStatus(RunIdle, "")
	} else {
		e.log.Warnw("Background sync failed", "message", result.Message)
		r.setStatus(RunError, result.Message)
	}
	r.sendResult(result)
}

func (r *Runner) setStatus(state RunState, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.status.State = state
	r.status.Message = message
	if state != RunRunning {
		r.status.LastRun = now
	}
	if state == RunIdle {
		r.status.LastSync = now
	}
}

// sendResult sends a result without blocking.
func (r *Runner) sendResult(result Result) {
	select {
	case r.resultCh <- result:
	default:
	}
}
