package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LaunchConfig is created once at startup and never mutated.
type LaunchConfig struct {
	Target         string         `validate:"required"`
	BindAddress    string         `validate:"required"`
	RequestTimeout time.Duration  `validate:"gt=0"`
	WorkerCount    int            `validate:"min=1"`
	Worker         WorkerSettings
	Env            []string
}

// WorkerSettings is the resolved form of WorkerConfig.
type WorkerSettings struct {
	Command          []string      `validate:"min=1"`
	BootTimeout      time.Duration `validate:"gt=0"`
	KillGrace        time.Duration `validate:"gte=0"`
	CheckInterval    time.Duration `validate:"gt=0"`
	QueueTimeout     time.Duration `validate:"gt=0"`
	RespawnPerSecond float64       `validate:"gt=0"`
	RespawnBurst     int           `validate:"min=1"`
}

// Validate checks the launch invariants.
func (lc LaunchConfig) Validate() error {
	if err := validate.Struct(lc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: verrs[0].Namespace(), Reason: "failed " + verrs[0].Tag()}
		}
		return &ConfigError{Field: "LaunchConfig", Reason: err.Error()}
	}
	if _, _, err := ParseBindAddress(lc.BindAddress); err != nil {
		return &ConfigError{Field: "BindAddress", Reason: err.Error()}
	}
	return nil
}

// ParseBindAddress splits a host:port pair. The host may be empty or a
// wildcard; the port must be numeric and within 0-65535.
func ParseBindAddress(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("bind address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("bind address %q: invalid port %q", addr, portStr)
	}
	if host != "" && net.ParseIP(host) == nil {
		if err := validate.Var(host, "hostname_rfc1123"); err != nil {
			return "", 0, fmt.Errorf("bind address %q: invalid host %q", addr, host)
		}
	}
	return host, port, nil
}
