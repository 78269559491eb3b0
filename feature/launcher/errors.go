package launcher

import (
	"errors"
	"fmt"
	"time"
)

// ErrPoolStopped is returned by Acquire once the pool is shutting down.
var ErrPoolStopped = errors.New("worker pool stopped")

// BindError reports that the listening socket could not be established.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// SpawnError reports a worker that could not be started or never became ready.
type SpawnError struct {
	Worker int
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn worker %d: %v", e.Worker, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// RequestTimeoutError is the exit reason of a worker killed for exceeding
// the request timeout.
type RequestTimeoutError struct {
	Worker  int
	Elapsed time.Duration
	Timeout time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("worker %d busy for %s, exceeding timeout %s", e.Worker, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// WorkerCrashError is the exit reason of a worker that died on its own or
// broke its connection to the front server.
type WorkerCrashError struct {
	Worker int
	Err    error
}

func (e *WorkerCrashError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("worker %d exited", e.Worker)
	}
	return fmt.Sprintf("worker %d crashed: %v", e.Worker, e.Err)
}

func (e *WorkerCrashError) Unwrap() error { return e.Err }

var errKillGraceExpired = errors.New("did not exit within kill grace")
