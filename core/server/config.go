package server

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config holds configuration for the launched application server.
type Config struct {
	// Bind is the host:port the front server listens on.
	Bind string `mapstructure:"bind" default:"0.0.0.0:8080"`
	// Target is the application entry point handed to every worker.
	Target string `mapstructure:"target" default:"app:server"`
	// TimeoutSeconds is the per-request budget before a worker is killed.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"120"`
	// Workers is the pool size. Zero derives it from the CPU count.
	Workers int `mapstructure:"workers" default:"0"`
}

// WorkerConfig holds configuration for worker processes.
type WorkerConfig struct {
	// Command is the worker command template. $BOOT_* variables are expanded.
	Command string `mapstructure:"command" default:"waitress-serve --threads=1 --listen=$BOOT_WORKER_ADDR $BOOT_TARGET"`
	// BootTimeoutSeconds bounds how long a worker may take to accept connections.
	BootTimeoutSeconds int `mapstructure:"boot_timeout_seconds" default:"30"`
	// KillGraceSeconds is the wait between SIGTERM and SIGKILL on shutdown.
	KillGraceSeconds int `mapstructure:"kill_grace_seconds" default:"5"`
	// CheckIntervalMs is the supervisor tick.
	CheckIntervalMs int `mapstructure:"check_interval_ms" default:"500"`
	// QueueTimeoutSeconds bounds how long a request waits for an Idle
	// worker before it is refused with 503. Zero uses the request timeout.
	QueueTimeoutSeconds int `mapstructure:"queue_timeout_seconds" default:"0"`
	// RespawnPerSecond throttles replacement spawns.
	RespawnPerSecond float64 `mapstructure:"respawn_per_second" default:"1"`
	// RespawnBurst is the respawn bucket size. Zero uses the pool size.
	RespawnBurst int `mapstructure:"respawn_burst" default:"0"`
}

// DefaultWorkerCount returns the pool size used when none is configured.
func DefaultWorkerCount() int {
	return 2*runtime.NumCPU() + 1
}

// LaunchConfig builds the immutable launch configuration.
// env is the environment prepared by the installer.
func (c Config) LaunchConfig(w WorkerConfig, env []string) (LaunchConfig, error) {
	workers := c.Workers
	if workers == 0 {
		workers = DefaultWorkerCount()
	}
	requestTimeout := time.Duration(c.TimeoutSeconds) * time.Second
	queueTimeout := time.Duration(w.QueueTimeoutSeconds) * time.Second
	if queueTimeout == 0 {
		queueTimeout = requestTimeout
	}
	burst := w.RespawnBurst
	if burst == 0 {
		burst = workers
	}

	lc := LaunchConfig{
		Target:         c.Target,
		BindAddress:    c.Bind,
		RequestTimeout: requestTimeout,
		WorkerCount:    workers,
		Worker: WorkerSettings{
			Command:          strings.Fields(w.Command),
			BootTimeout:      time.Duration(w.BootTimeoutSeconds) * time.Second,
			KillGrace:        time.Duration(w.KillGraceSeconds) * time.Second,
			CheckInterval:    time.Duration(w.CheckIntervalMs) * time.Millisecond,
			QueueTimeout:     queueTimeout,
			RespawnPerSecond: w.RespawnPerSecond,
			RespawnBurst:     burst,
		},
		Env: append([]string(nil), env...),
	}
	if err := lc.Validate(); err != nil {
		return LaunchConfig{}, err
	}
	return lc, nil
}

// ConfigError reports an invalid launch configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid launch config: %s %s", e.Field, e.Reason)
}
