// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments (development vs production)
// and integrates with the Fiber front server of the launcher.
//
// # Context Awareness
//
// The WithRayID helper extracts the RayID (request ID) from a Fiber context and attaches it to the
// log entry, so the front-server log lines of a single proxied request can be correlated.
// WithWorker binds the worker id and process id used by the supervisor.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Encoding: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Bootstrap started")
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Warn("Request abandoned", zap.Error(err))
package logger
