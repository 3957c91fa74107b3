package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindly/internal/sync"
)

func waitResult(t *testing.T, r *sync.Runner) sync.Result {
	t.Helper()
	select {
	case res := <-r.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for background result")
		return sync.Result{}
	}
}

func TestRunner_TriggerRunsPass(t *testing.T) {
	h := newHarness(t)
	h.createList(t, "L1", "Work")

	r := sync.NewRunner(h.engine, time.Hour)
	r.Start(context.Background())
	defer r.Stop()

	r.Trigger()
	res := waitResult(t, r)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Stats.Pushed)

	status := r.Status()
	assert.Equal(t, sync.RunIdle, status.State)
	assert.False(t, status.LastSync.IsZero())
	assert.Empty(t, status.Message)
}

func TestRunner_RestartsAfterStop(t *testing.T) {
	h := newHarness(t)
	h.createList(t, "L1", "Work")

	r := sync.NewRunner(h.engine, time.Hour)
	r.Start(context.Background())
	r.Stop()

	r.Start(context.Background())
	defer r.Stop()

	r.Trigger()
	res := waitResult(t, r)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Stats.Pushed)
	assert.Equal(t, sync.RunIdle, r.Status().State)
}

func TestRunner_ReportsFailure(t *testing.T) {
	h := newHarness(t)
	h.server.set(func(f *fakeServer) { f.changesStatus = 500 })

	r := sync.NewRunner(h.engine, time.Hour)
	r.Start(context.Background())
	defer r.Stop()

	r.Trigger()
	res := waitResult(t, r)
	assert.False(t, res.Success)

	status := r.Status()
	assert.Equal(t, sync.RunError, status.State)
	assert.Contains(t, status.Message, "server returned 500")
	assert.True(t, status.LastSync.IsZero())
}

func TestRunner_SkipsWhenOfflineOrSignedOut(t *testing.T) {
	h := newHarness(t)
	h.online.Set(false)

	r := sync.NewRunner(h.engine, 10*time.Millisecond)
	r.Start(context.Background())

	r.Trigger()
	time.Sleep(50 * time.Millisecond)

	h.online.Set(true)
	require.NoError(t, h.tokens.Clear())
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	assert.Empty(t, h.server.Calls())
	select {
	case res := <-r.Results():
		t.Fatalf("unexpected result %+v", res)
	default:
	}
	assert.Equal(t, sync.RunIdle, r.Status().State)
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	r := sync.NewRunner(h.engine, 0)
	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "idle", sync.RunIdle.String())
	assert.Equal(t, "running", sync.RunRunning.String())
	assert.Equal(t, "error", sync.RunError.String())
	assert.Equal(t, "unknown", sync.RunState(42).String())
}
