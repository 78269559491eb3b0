package launcher

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_StateTransitions(t *testing.T) {
	w := newWorker(1, "127.0.0.1:0", exec.Command("true"))
	assert.Equal(t, WorkerBooting, w.State())
	assert.False(t, w.markBusy(time.Now()), "booting worker cannot take requests")

	require.True(t, w.markReady())
	assert.False(t, w.markReady())
	assert.False(t, w.markIdle())

	start := time.Now()
	require.True(t, w.markBusy(start))
	elapsed, busy := w.busyFor(start.Add(3 * time.Second))
	assert.True(t, busy)
	assert.Equal(t, 3*time.Second, elapsed)

	require.True(t, w.markIdle())
	_, busy = w.busyFor(time.Now())
	assert.False(t, busy)

	require.True(t, w.markBusy(time.Now()))
	first := errors.New("first")
	w.kill(first)
	w.kill(errors.New("second"))
	assert.Equal(t, WorkerKilled, w.State())
	assert.Same(t, first, w.ExitReason())
	assert.False(t, w.markIdle(), "killed worker must not return to idle")
}

func TestWorker_TerminateEscalatesToKill(t *testing.T) {
	s := helperSpawner(helperConfig(1, time.Minute))
	s.Env = append(s.Env, "HELPER_MODE=ignore-term")

	w, err := s.Spawn(context.Background(), 1)
	require.NoError(t, err)

	start := time.Now()
	w.terminate(300 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, WorkerExited, w.State())
	assert.ErrorIs(t, w.ExitReason(), errKillGraceExpired)
}

func TestWorker_TerminateGraceful(t *testing.T) {
	w, err := helperSpawner(helperConfig(1, time.Minute)).Spawn(context.Background(), 1)
	require.NoError(t, err)

	w.terminate(5 * time.Second)
	assert.Equal(t, WorkerExited, w.State())

	var crash *WorkerCrashError
	require.ErrorAs(t, w.ExitReason(), &crash)
	assert.NotErrorIs(t, w.ExitReason(), errKillGraceExpired)
}
