package launcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"app-bootstrap/core/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PoolConfig configures a worker pool.
type PoolConfig struct {
	Size           int
	RequestTimeout time.Duration
	CheckInterval  time.Duration
	// Respawn throttles replacement spawns. Nil means unthrottled.
	Respawn *rate.Limiter
}

// Pool keeps Size workers alive and hands out Idle workers one request at a
// time. A supervisor kills workers that stay Busy past RequestTimeout and
// replaces every worker that exits.
type Pool struct {
	cfg     PoolConfig
	spawner Spawner
	logger  *zap.Logger

	mu       sync.Mutex
	workers  map[int]*Worker
	idle     []*Worker
	wake     chan struct{}
	nextID   int
	stopping bool

	exits  chan *Worker
	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
	now    func() time.Time
}

// NewPool creates a pool. Call Start to spawn the workers.
func NewPool(cfg PoolConfig, spawner Spawner, logger *zap.Logger) *Pool {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 500 * time.Millisecond
	}
	if cfg.Respawn == nil {
		cfg.Respawn = rate.NewLimiter(rate.Inf, 1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:     cfg,
		spawner: spawner,
		logger:  logger,
		workers: make(map[int]*Worker, cfg.Size),
		wake:    make(chan struct{}),
		exits:   make(chan *Worker, cfg.Size),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Start spawns the initial workers concurrently and starts the supervisor.
// If any worker fails to start, the already started ones are stopped and the
// first *SpawnError is returned.
func (p *Pool) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Size; i++ {
		id := p.allocID()
		g.Go(func() error {
			w, err := p.spawner.Spawn(gctx, id)
			if err != nil {
				return err
			}
			p.add(w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Stop(0)
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) {
			return spawnErr
		}
		return &SpawnError{Err: err}
	}

	p.tasks.Add(1)
	go p.supervise()
	return nil
}

// Acquire blocks until an Idle worker is available and marks it Busy.
func (p *Pool) Acquire(ctx context.Context) (*Worker, error) {
	for {
		p.mu.Lock()
		if p.stopping {
			p.mu.Unlock()
			return nil, ErrPoolStopped
		}
		// Oldest idle worker first. Entries that died while queued fail
		// markBusy and are dropped here.
		for len(p.idle) > 0 {
			w := p.idle[0]
			p.idle = p.idle[1:]
			if w.markBusy(p.now()) {
				p.mu.Unlock()
				return w, nil
			}
		}
		// Grab the wake channel under the lock so a Release between
		// Unlock and select is not missed.
		wake := p.wake
		p.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a Busy worker to the idle queue. Workers that were killed
// while serving are left to the supervisor.
func (p *Pool) Release(w *Worker) {
	if !w.markIdle() {
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, w)
	p.broadcast()
	p.mu.Unlock()
}

// Size returns the number of live workers, Idle or Busy.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.workers {
		if s := w.State(); s == WorkerIdle || s == WorkerBusy {
			n++
		}
	}
	return n
}

// Workers returns a snapshot of the registered workers.
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w)
	}
	return out
}

// Stop halts respawning, sends SIGTERM to every worker and SIGKILL to those
// still running after grace. Blocked Acquire calls return ErrPoolStopped.
func (p *Pool) Stop(grace time.Duration) {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	p.broadcast()
	p.mu.Unlock()

	// Cancel first: respawns in flight abort their boot and watchers exit,
	// so the snapshot below is the final set of workers.
	p.cancel()
	p.tasks.Wait()

	var wg sync.WaitGroup
	for _, w := range p.Workers() {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.terminate(grace)
		}(w)
	}
	wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) allocID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return p.nextID
}

// add registers a ready worker and watches for its exit.
func (p *Pool) add(w *Worker) {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		w.terminate(0)
		return
	}
	p.workers[w.ID] = w
	p.idle = append(p.idle, w)
	p.broadcast()
	p.mu.Unlock()

	logger.WithWorker(p.logger, w.ID, w.PID()).Info("Worker ready", zap.String("addr", w.Addr))

	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()
		select {
		case <-w.Done():
			select {
			case p.exits <- w:
			case <-p.ctx.Done():
			}
		case <-p.ctx.Done():
		}
	}()
}

// broadcast wakes every waiting Acquire. Callers hold p.mu.
func (p *Pool) broadcast() {
	close(p.wake)
	p.wake = make(chan struct{})
}

func (p *Pool) supervise() {
	defer p.tasks.Done()
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case w := <-p.exits:
			p.handleExit(w)
		case <-ticker.C:
			p.reap(p.now())
		}
	}
}

// reap kills every worker busy for longer than the request timeout.
func (p *Pool) reap(now time.Time) {
	for _, w := range p.Workers() {
		elapsed, busy := w.busyFor(now)
		if !busy || elapsed <= p.cfg.RequestTimeout {
			continue
		}
		reason := &RequestTimeoutError{Worker: w.ID, Elapsed: elapsed, Timeout: p.cfg.RequestTimeout}
		logger.WithWorker(p.logger, w.ID, w.PID()).Warn("Killing worker", zap.Error(reason))
		w.kill(reason)
	}
}

func (p *Pool) handleExit(w *Worker) {
	p.mu.Lock()
	delete(p.workers, w.ID)
	for i, iw := range p.idle {
		if iw == w {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
	stopping := p.stopping
	p.mu.Unlock()
	if stopping {
		return
	}

	reason := w.ExitReason()
	l := logger.WithWorker(p.logger, w.ID, w.PID())
	var timeout *RequestTimeoutError
	if errors.As(reason, &timeout) {
		l.Warn("Worker killed on timeout, respawning", zap.Error(reason))
	} else {
		l.Error("Worker exited, respawning", zap.Error(reason))
	}

	// Respawn off the supervisor goroutine; the limiter may block.
	p.tasks.Add(1)
	go p.respawn()
}

// respawn spawns one replacement, retrying through the limiter until it
// succeeds or the pool stops.
func (p *Pool) respawn() {
	defer p.tasks.Done()
	for {
		if err := p.cfg.Respawn.Wait(p.ctx); err != nil {
			return
		}
		id := p.allocID()
		w, err := p.spawner.Spawn(p.ctx, id)
		if err == nil {
			p.add(w)
			return
		}
		if p.ctx.Err() != nil {
			return
		}
		p.logger.Error("Respawn failed", zap.Int("worker", id), zap.Error(err))
	}
}
