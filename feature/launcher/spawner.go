package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"app-bootstrap/core/server"
)

// Worker environment variables.
const (
	EnvTarget     = "BOOT_TARGET"
	EnvWorkerAddr = "BOOT_WORKER_ADDR"
	EnvWorkerID   = "BOOT_WORKER_ID"
	EnvHost       = "HOST"
	EnvPort       = "PORT"
)

const (
	readinessPoll = 25 * time.Millisecond
	waitDelay     = 2 * time.Second
)

// Spawner starts workers. Spawn returns once the worker is Idle.
type Spawner interface {
	Spawn(ctx context.Context, id int) (*Worker, error)
}

// ProcessSpawner starts workers as child processes from a command template.
type ProcessSpawner struct {
	Command     []string
	Target      string
	Env         []string
	Host        string
	BootTimeout time.Duration
	Stdout      io.Writer
	Stderr      io.Writer
}

// NewProcessSpawner creates a spawner for cfg. Worker output goes to the
// bootstrap's own stdout and stderr.
func NewProcessSpawner(cfg server.LaunchConfig) *ProcessSpawner {
	return &ProcessSpawner{
		Command:     cfg.Worker.Command,
		Target:      cfg.Target,
		Env:         cfg.Env,
		Host:        "127.0.0.1",
		BootTimeout: cfg.Worker.BootTimeout,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Spawn starts a worker and waits until its address accepts connections.
func (s *ProcessSpawner) Spawn(ctx context.Context, id int) (*Worker, error) {
	if len(s.Command) == 0 {
		return nil, &SpawnError{Worker: id, Err: errors.New("empty worker command")}
	}

	addr, err := freeAddr(s.Host)
	if err != nil {
		return nil, &SpawnError{Worker: id, Err: err}
	}
	env := s.environ(id, addr)
	vars := envMap(env)
	lookup := func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	}

	args := make([]string, len(s.Command))
	for i, arg := range s.Command {
		args[i] = os.Expand(arg, lookup)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	// Own process group: signals reach everything the command starts.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Bound Wait when an orphaned descendant still holds the output pipes.
	cmd.WaitDelay = waitDelay
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Worker: id, Err: err}
	}

	w := newWorker(id, addr, cmd)
	go w.wait()

	if err := s.awaitReady(ctx, w); err != nil {
		w.kill(err)
		<-w.Done()
		return nil, &SpawnError{Worker: id, Err: err}
	}
	return w, nil
}

func (s *ProcessSpawner) environ(id int, addr string) []string {
	host, port, _ := net.SplitHostPort(addr)
	env := make([]string, 0, len(s.Env)+5)
	env = append(env, s.Env...)
	return append(env,
		EnvTarget+"="+s.Target,
		EnvWorkerAddr+"="+addr,
		EnvWorkerID+"="+strconv.Itoa(id),
		EnvHost+"="+host,
		EnvPort+"="+port,
	)
}

// awaitReady polls the worker address until it accepts a TCP connection.
func (s *ProcessSpawner) awaitReady(ctx context.Context, w *Worker) error {
	timeout := s.BootTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(readinessPoll)
	defer ticker.Stop()

	var dialer net.Dialer
	for {
		dialCtx, cancel := context.WithTimeout(ctx, readinessPoll*4)
		conn, err := dialer.DialContext(dialCtx, "tcp", w.Addr)
		cancel()
		if err == nil {
			_ = conn.Close()
			if !w.markReady() {
				return fmt.Errorf("worker left booting state: %s", w.State())
			}
			return nil
		}

		select {
		case <-w.Done():
			return fmt.Errorf("exited during boot: %w", w.ExitReason())
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("not ready on %s after %s", w.Addr, timeout)
		case <-ticker.C:
		}
	}
}

// freeAddr reserves a loopback port by binding and releasing it.
func freeAddr(host string) (string, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return "", fmt.Errorf("pick worker port: %w", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
