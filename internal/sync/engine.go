package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/netcheck"
	"github.com/nhle/remindly/internal/remote"
	"github.com/nhle/remindly/internal/store"
)

// Messages reported in failed results.
const (
	MsgOffline      = "Device is offline"
	MsgInvalidToken = "Authentication token invalid or expired"
)

// Remote is the part of the server API the engine talks to.
type Remote interface {
	Changes(ctx context.Context, since int64) (*remote.Changes, error)
	CreateList(ctx context.Context, list remote.ListPayload) (string, error)
	UpdateList(ctx context.Context, list remote.ListPayload) (string, error)
	CreateTask(ctx context.Context, task remote.TaskPayload) (string, error)
	UpdateTask(ctx context.Context, task remote.TaskPayload) (string, error)
	CreateSubtask(ctx context.Context, subtask remote.SubtaskPayload) (string, error)
	UpdateSubtask(ctx context.Context, subtask remote.SubtaskPayload) (string, error)
	Delete(ctx context.Context, serverID string) error
}

// Credentials gives the engine the token gate and the checkpoint.
type Credentials interface {
	Valid() bool
	LastSync() (int64, error)
	SetLastSync(ms int64) error
}

// Options tune a single Synchronize call. Use DefaultOptions for the
// standard behavior.
type Options struct {
	// SkipOnOffline treats being offline as success instead of failure.
	SkipOnOffline bool

	// Silent suppresses the offline failure when SkipOnOffline is false.
	Silent bool

	// HasChanges marks a sync requested right after a local edit.
	HasChanges bool
}

// DefaultOptions returns {SkipOnOffline: true}.
func DefaultOptions() Options {
	return Options{SkipOnOffline: true}
}

// Stats counts what a pass did.
type Stats struct {
	Deleted int
	Pushed  int
	Pulled  int
	Failed  int
	Skipped int
}

// Result is the outcome of a sync operation. It is the only thing callers
// ever receive: failures are reported here, never raised.
type Result struct {
	Success       bool
	Offline       bool
	Queued        bool
	TokenError    bool
	IsServerError bool
	Message       string
	Stats         Stats
}

func (r Result) outcome() string {
	switch {
	case r.Queued:
		return outcomeQueued
	case r.Offline && r.Success:
		return outcomeOffline
	case r.Success:
		return outcomeSuccess
	}
	return outcomeFailure
}

// Engine reconciles the local store with the server.
type Engine struct {
	store  store.Store
	remote Remote
	creds  Credentials
	oracle netcheck.Oracle
	log    *zap.SugaredLogger
	now    func() time.Time
	policy string

	mu      gosync.Mutex
	running bool
	pending *queuedPass
}

// queuedPass is a request made while a pass was running. It runs under the
// context of the caller that queued it.
type queuedPass struct {
	ctx  context.Context
	opts Options
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger attaches a logger.
func WithLogger(log *zap.SugaredLogger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock replaces the time source used for the checkpoint.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithConflictPolicy selects how a pulled row treats a dirty local row.
func WithConflictPolicy(policy string) EngineOption {
	return func(e *Engine) {
		if policy != "" {
			e.policy = policy
		}
	}
}

// NewEngine creates an Engine. The store handle is shared, not owned.
func NewEngine(
	s store.Store,
	r Remote,
	creds Credentials,
	oracle netcheck.Oracle,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:  s,
		remote: r,
		creds:  creds,
		oracle: oracle,
		log:    zap.NewNop().Sugar(),
		now:    time.Now,
		policy: model.ConflictRemoteWins,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synchronize pushes local changes, pulls remote ones and advances the
// checkpoint after a fully successful online pass.
//
// Only one pass runs at a time. A call made while a pass is running is
// queued and returns immediately with Queued set; the latest queued request
// runs once after the current pass ends, under its own caller's context.
func (e *Engine) Synchronize(ctx context.Context, opts Options) Result {
	e.mu.Lock()
	if e.running {
		e.pending = &queuedPass{ctx: ctx, opts: opts}
		e.mu.Unlock()
		e.log.Debugw("Sync already running, request queued", "has_changes", opts.HasChanges)
		result := Result{Success: true, Queued: true, Message: "sync already in progress"}
		recordPass(result, 0)
		return result
	}
	e.running = true
	e.mu.Unlock()

	result := e.runPass(ctx, opts)

	for {
		e.mu.Lock()
		next := e.pending
		e.pending = nil
		if next == nil {
			e.running = false
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()

		if err := next.ctx.Err(); err != nil {
			e.log.Debugw("Queued sync dropped, its caller is gone", "error", err)
			continue
		}
		e.log.Debugw("Running queued sync")
		followUp := e.runPass(next.ctx, next.opts)
		if !followUp.Success {
			e.log.Warnw("Queued sync failed", "message", followUp.Message)
		}
	}

	return result
}

// runPass applies the online/offline policy and runs push then pull.
func (e *Engine) runPass(ctx context.Context, opts Options) (result Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprint(p)
			e.log.Errorw("Sync pass panicked", "panic", msg)
			result = Result{
				Success:       false,
				Message:       msg,
				IsServerError: strings.Contains(msg, "503"),
				Offline:       !e.oracle.Online(ctx),
			}
		}
		recordPass(result, time.Since(start))
	}()

	online := e.oracle.Online(ctx)
	e.log.Infow("Starting sync", "online", online, "has_changes", opts.HasChanges)

	if !online && opts.SkipOnOffline {
		e.log.Infow("Device is offline, will sync later")
		return Result{Success: true, Offline: true, Message: "Device is offline, using local data"}
	}
	if !online && !opts.Silent {
		return Result{Success: false, Offline: true, Message: MsgOffline}
	}
	if online && !e.creds.Valid() {
		e.log.Warnw("Sync cancelled: auth token invalid or expired")
		return Result{Success: false, TokenError: true, Message: MsgInvalidToken}
	}

	passStart := model.Millis(e.now())

	// Offline passes reach this point only in silent mode; both phases are
	// skipped and nothing counts as a failure.
	push := Result{Success: false, Offline: true}
	pull := Result{Success: false, Offline: true}
	if online {
		push = e.push(ctx)
		if push.TokenError {
			e.log.Warnw("Sync aborted: token rejected during push")
			return push
		}
		pull = e.pull(ctx)
	}

	stats := push.Stats
	stats.Pulled = pull.Stats.Pulled

	if online && (!push.Success || !pull.Success) {
		msg := push.Message
		if msg == "" {
			msg = pull.Message
		}
		if msg == "" {
			msg = "Sync failed"
		}
		e.log.Warnw("Sync failed", "message", msg)
		return Result{
			Success:       false,
			TokenError:    pull.TokenError,
			IsServerError: push.IsServerError || pull.IsServerError,
			Message:       msg,
			Stats:         stats,
		}
	}

	if online {
		if err := e.creds.SetLastSync(passStart); err != nil {
			return Result{
				Success: false,
				Message: fmt.Sprintf("saving sync checkpoint: %v", err),
				Stats:   stats,
			}
		}
	}

	e.log.Infow("Sync completed",
		"offline", !online,
		"pushed", stats.Pushed,
		"deleted", stats.Deleted,
		"pulled", stats.Pulled,
		"failed", stats.Failed,
	)
	return Result{Success: true, Offline: !online, Stats: stats}
}

// gate applies the checks shared by Push and Pull. It returns nil when the
// phase may proceed.
func (e *Engine) gate(ctx context.Context, skipOffline bool) *Result {
	if skipOffline && !e.oracle.Online(ctx) {
		return &Result{Success: false, Offline: true}
	}
	if !e.creds.Valid() {
		return &Result{Success: false, TokenError: true, Message: MsgInvalidToken}
	}
	return nil
}

// failure builds a failed Result from err.
func failure(err error) Result {
	msg := err.Error()
	return Result{
		Success:       false,
		Message:       msg,
		TokenError:    remote.IsAuthError(err),
		IsServerError: remote.IsServerUnavailable(err) || strings.Contains(msg, "503"),
	}
}
