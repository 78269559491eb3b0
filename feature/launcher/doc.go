// Package launcher runs the application behind a supervised pool of worker
// processes.
//
// The launcher binds the only listening socket and serves it with a Fiber
// front server. Each request is handed to one Idle worker, a child process
// started from the configured command template, over a single keep-alive
// connection. A worker serves one request at a time.
//
// # Lifecycle
//
//	Starting --bind ok--> Running --ctx done--> Stopping --> Stopped
//	    |                    |
//	    +--bind error------> Failed <--initial spawn error
//
// # Timeouts
//
// The supervisor checks Busy workers every CheckInterval. A worker that has
// been Busy for longer than RequestTimeout is killed with SIGKILL, the
// client connection is closed without a response and a replacement worker
// is spawned. Crashed workers are replaced the same way. Replacements go
// through a token bucket so a crash-looping application is throttled.
//
// # Worker command
//
// Arguments are expanded with $BOOT_TARGET, $BOOT_WORKER_ADDR,
// $BOOT_WORKER_ID, $HOST and $PORT, which are also set in the worker
// environment together with the installer environment:
//
//	waitress-serve --threads=1 --listen=$BOOT_WORKER_ADDR $BOOT_TARGET
package launcher
