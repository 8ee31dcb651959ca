package netutil

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
)

var errKeepaliveNotSupported = errors.New("keepalive not supported")

// Limiter is a pool of connection slots shared by every listener of the
// daemon. Use NewLimiterWithMetrics to create an instance.
type Limiter struct {
	slots      *semaphore.Weighted
	concurrent prometheus.Gauge
	waiting    prometheus.Gauge
}

// NewLimiterWithMetrics creates a Limiter of n slots reporting to the given gauges
func NewLimiterWithMetrics(n int, maxConns, concurrent, waiting prometheus.Gauge) *Limiter {
	maxConns.Set(float64(n))

	return &Limiter{
		slots:      semaphore.NewWeighted(int64(n)),
		concurrent: concurrent,
		waiting:    waiting,
	}
}

func (l *Limiter) acquire(ctx context.Context) error {
	l.waiting.Inc()
	defer l.waiting.Dec()

	if err := l.slots.Acquire(ctx, 1); err != nil {
		return err
	}

	l.concurrent.Inc()

	return nil
}

func (l *Limiter) release() {
	l.slots.Release(1)
	l.concurrent.Dec()
}

// SharedLimitListener returns a Listener that only accepts a connection once
// it holds a slot of limiter. The slot is returned when the connection is
// closed.
func SharedLimitListener(listener net.Listener, limiter *Limiter) net.Listener {
	ctx, cancel := context.WithCancel(context.Background())

	return &sharedLimitListener{
		Listener: listener,
		limiter:  limiter,
		ctx:      ctx,
		cancel:   cancel,
	}
}

type sharedLimitListener struct {
	net.Listener
	limiter *Limiter

	// cancelled by Close to stop waiting for a slot
	ctx    context.Context
	cancel context.CancelFunc
}

func (l *sharedLimitListener) Accept() (net.Conn, error) {
	if err := l.limiter.acquire(l.ctx); err != nil {
		return nil, net.ErrClosed
	}

	conn, err := l.Listener.Accept()
	if err != nil {
		l.limiter.release()
		return nil, err
	}

	return &sharedLimitListenerConn{Conn: conn, release: l.limiter.release}, nil
}

func (l *sharedLimitListener) Close() error {
	l.cancel()

	return l.Listener.Close()
}

type sharedLimitListenerConn struct {
	net.Conn
	releaseOnce sync.Once
	release     func()
}

func (c *sharedLimitListenerConn) Close() error {
	err := c.Conn.Close()
	c.releaseOnce.Do(c.release)

	return err
}

func (c *sharedLimitListenerConn) SetKeepAlive(enabled bool) error {
	kc, ok := c.Conn.(keepAliveSetter)
	if !ok {
		return errKeepaliveNotSupported
	}

	return kc.SetKeepAlive(enabled)
}

func (c *sharedLimitListenerConn) SetKeepAlivePeriod(period time.Duration) error {
	kc, ok := c.Conn.(keepAliveSetter)
	if !ok {
		return errKeepaliveNotSupported
	}

	return kc.SetKeepAlivePeriod(period)
}
