package launcher

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"app-bootstrap/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// exitSettle is how long a failed exchange waits for the worker to be
// reaped before the failure is blamed on the request instead.
const exitSettle = 250 * time.Millisecond

// handle proxies one request to an Idle worker. When the worker dies before
// answering, the client connection is closed without a response.
func (l *Launcher) handle(c *fiber.Ctx) error {
	log := logger.WithRayID(l.logger, c)

	// A request that cannot get a worker within the queue timeout is
	// refused instead of waiting for a client that may be long gone.
	ctx, cancel := context.WithTimeout(c.UserContext(), l.cfg.Worker.QueueTimeout)
	w, err := l.pool.Acquire(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, ErrPoolStopped) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn("No worker available", zap.String("path", c.Path()), zap.Error(err))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter(l.cfg.RequestTimeout)))
			return fiber.ErrServiceUnavailable
		}
		return err
	}

	start := time.Now()
	req := c.Request()
	resp := c.Response()

	// Every exchange gets a fresh worker connection; idle keep-alive
	// connections are closed by worker servers on their own schedule.
	clientClose := req.Header.ConnectionClose()
	req.Header.Del(fiber.HeaderConnection)
	req.SetConnectionClose()

	err = w.Do(req, resp)

	if !clientClose {
		req.Header.ResetConnectionClose()
	}
	resp.Header.Del(fiber.HeaderConnection)

	if err != nil {
		return l.fail(c, log, w, start, err)
	}
	l.pool.Release(w)

	log.Debug("Request served",
		zap.Int("worker", w.ID),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// fail handles a broken exchange. A worker that was killed or exited takes
// the client connection down with it. A live worker keeps serving and the
// client gets 502.
func (l *Launcher) fail(c *fiber.Ctx, log *zap.Logger, w *Worker, start time.Time, err error) error {
	if w.ExitReason() == nil {
		select {
		case <-w.Done():
		case <-time.After(exitSettle):
		}
	}

	if reason := w.ExitReason(); reason != nil {
		log.Warn("Request abandoned",
			zap.Int("worker", w.ID),
			zap.String("path", c.Path()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(reason),
		)
		abandon(c)
		return nil
	}

	l.pool.Release(w)
	log.Warn("Bad response from worker",
		zap.Int("worker", w.ID),
		zap.String("path", c.Path()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	c.Response().Reset()
	return fiber.ErrBadGateway
}

// retryAfter converts the request timeout into a Retry-After hint.
func retryAfter(timeout time.Duration) int {
	if secs := int(timeout / time.Second); secs > 1 {
		return secs
	}
	return 1
}

// abandon closes the client connection instead of writing a response.
func abandon(c *fiber.Ctx) {
	ctx := c.Context()
	ctx.HijackSetNoResponse(true)
	ctx.Hijack(func(conn net.Conn) {
		_ = conn.Close()
	})
}
