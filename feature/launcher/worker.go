package launcher

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
)

// workerBufferSize bounds the response header size a worker may send.
const workerBufferSize = 64 * 1024

// Worker is one application server child process. It serves at most one
// request at a time over a single keep-alive connection.
type Worker struct {
	ID   int
	Addr string

	cmd    *exec.Cmd
	client *fasthttp.HostClient
	done   chan struct{}

	mu        sync.Mutex
	state     WorkerState
	busySince time.Time
	reason    error
}

func newWorker(id int, addr string, cmd *exec.Cmd) *Worker {
	return &Worker{
		ID:   id,
		Addr: addr,
		cmd:  cmd,
		client: &fasthttp.HostClient{
			Addr: addr,
			// One request at a time, never replayed on another attempt.
			MaxConns:                  1,
			MaxIdemponentCallAttempts: 1,
			// Application responses may carry large cookies or headers.
			ReadBufferSize:                workerBufferSize,
			WriteBufferSize:               workerBufferSize,
			NoDefaultUserAgentHeader:      true,
			DisableHeaderNamesNormalizing: true,
			DisablePathNormalizing:        true,
		},
		done:  make(chan struct{}),
		state: WorkerBooting,
	}
}

// PID returns the process id of the worker.
func (w *Worker) PID() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done is closed once the process has exited and been reaped.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// ExitReason returns why the worker was killed or exited, nil while alive.
func (w *Worker) ExitReason() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// Do forwards one request to the worker.
func (w *Worker) Do(req *fasthttp.Request, resp *fasthttp.Response) error {
	return w.client.Do(req, resp)
}

func (w *Worker) markReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WorkerBooting {
		return false
	}
	w.state = WorkerIdle
	return true
}

func (w *Worker) markBusy(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WorkerIdle {
		return false
	}
	w.state = WorkerBusy
	w.busySince = now
	return true
}

func (w *Worker) markIdle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WorkerBusy {
		return false
	}
	w.state = WorkerIdle
	w.busySince = time.Time{}
	return true
}

// busyFor reports how long the current request has been running.
func (w *Worker) busyFor(now time.Time) (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WorkerBusy {
		return 0, false
	}
	return now.Sub(w.busySince), true
}

// kill sends SIGKILL and records reason. Only the first reason is kept.
func (w *Worker) kill(reason error) {
	w.mu.Lock()
	if w.state == WorkerKilled || w.state == WorkerExited {
		w.mu.Unlock()
		return
	}
	w.state = WorkerKilled
	w.reason = reason
	w.mu.Unlock()

	w.signal(syscall.SIGKILL)
}

// signal delivers sig to the worker's whole process group, so servers
// started through a shell wrapper or pre-forked children go down with it.
func (w *Worker) signal(sig syscall.Signal) {
	if w.cmd.Process == nil {
		return
	}
	pid := w.cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil {
		// Group already gone or never created; fall back to the leader.
		_ = w.cmd.Process.Signal(sig)
	}
}

// terminate asks the worker to stop with SIGTERM and kills it when it has
// not exited within grace.
func (w *Worker) terminate(grace time.Duration) {
	select {
	case <-w.done:
		return
	default:
	}
	w.signal(syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-w.done:
	case <-timer.C:
		w.kill(&WorkerCrashError{Worker: w.ID, Err: errKillGraceExpired})
		<-w.done
	}
}

// wait reaps the process. It must run exactly once per started worker.
func (w *Worker) wait() {
	err := w.cmd.Wait()
	// Leftover group members would keep serving on the worker port.
	w.signal(syscall.SIGKILL)

	w.mu.Lock()
	if w.reason == nil {
		w.reason = &WorkerCrashError{Worker: w.ID, Err: err}
	}
	w.state = WorkerExited
	w.mu.Unlock()

	w.client.CloseIdleConnections()
	close(w.done)
}
