// Package server holds the launch configuration of the application server.
//
// The Config and WorkerConfig structs are loaded by core/config from the
// environment. LaunchConfig turns them into the immutable LaunchConfig used
// by the launcher: bind address, target, per-request timeout, pool size and
// the worker command template.
//
// # Invariants
//
// RequestTimeout is positive, WorkerCount is at least one and BindAddress is
// a valid host:port pair. Violations are reported as *ConfigError.
package server
