package launcher

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"app-bootstrap/core/middleware/rayid"
	"app-bootstrap/core/server"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Launcher owns the listening socket and the worker pool.
type Launcher struct {
	cfg     server.LaunchConfig
	spawner Spawner
	logger  *zap.Logger

	state atomic.Int32
	ready chan struct{}

	mu   sync.Mutex
	addr net.Addr
	pool *Pool
}

// New creates a launcher. A nil spawner starts workers from cfg.Worker.Command.
func New(cfg server.LaunchConfig, spawner Spawner, logger *zap.Logger) *Launcher {
	if spawner == nil {
		spawner = NewProcessSpawner(cfg)
	}
	return &Launcher{
		cfg:     cfg,
		spawner: spawner,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (l *Launcher) State() State {
	return State(l.state.Load())
}

// Ready is closed once the socket is bound and every worker is Idle.
func (l *Launcher) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound address, nil before Running.
func (l *Launcher) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Pool returns the worker pool, nil before Running.
func (l *Launcher) Pool() *Pool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool
}

// Run binds, starts the workers and serves until ctx is cancelled. It
// returns *BindError or *SpawnError when startup fails and nil after an
// orderly shutdown.
func (l *Launcher) Run(ctx context.Context) error {
	l.setState(StateStarting)

	ln, err := net.Listen("tcp", l.cfg.BindAddress)
	if err != nil {
		l.setState(StateFailed)
		return &BindError{Addr: l.cfg.BindAddress, Err: err}
	}

	pool := NewPool(PoolConfig{
		Size:           l.cfg.WorkerCount,
		RequestTimeout: l.cfg.RequestTimeout,
		CheckInterval:  l.cfg.Worker.CheckInterval,
		Respawn:        rate.NewLimiter(rate.Limit(l.cfg.Worker.RespawnPerSecond), l.cfg.Worker.RespawnBurst),
	}, l.spawner, l.logger)
	l.mu.Lock()
	l.addr = ln.Addr()
	l.pool = pool
	l.mu.Unlock()
	l.setState(StateRunning)

	if err := pool.Start(ctx); err != nil {
		_ = ln.Close()
		l.setState(StateFailed)
		return err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "bootstrap",
	})
	app.Use(rayid.New())
	app.Use(l.handle)

	served := make(chan error, 1)
	go func() {
		served <- app.Listener(ln)
	}()

	close(l.ready)
	l.logger.Info("Launcher running",
		zap.String("addr", ln.Addr().String()),
		zap.String("target", l.cfg.Target),
		zap.Int("workers", l.cfg.WorkerCount),
		zap.Duration("timeout", l.cfg.RequestTimeout),
	)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-served:
		l.logger.Error("Front server stopped unexpectedly", zap.Error(serveErr))
	}

	l.setState(StateStopping)
	l.logger.Info("Shutting down", zap.Duration("drain", l.cfg.RequestTimeout))
	if err := app.ShutdownWithTimeout(l.cfg.RequestTimeout); err != nil {
		l.logger.Warn("In-flight requests cut off", zap.Error(err))
	}
	pool.Stop(l.cfg.Worker.KillGrace)

	if serveErr != nil {
		l.setState(StateFailed)
		return serveErr
	}
	l.setState(StateStopped)
	return nil
}

func (l *Launcher) setState(s State) {
	l.state.Store(int32(s))
}
