// Package dispatch serves resolved route directories, running HANDLE
// programs and following their output until a static response is found.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"gitlab.com/chora/chora/internal/resolver"
	"gitlab.com/chora/chora/internal/responsedir"
	"gitlab.com/chora/chora/internal/vfs"
	"gitlab.com/chora/chora/metrics"
)

const (
	// DefaultTimeout bounds a single handler execution
	DefaultTimeout = 10 * time.Second
	// DefaultMaxDepth is the number of handlers a single request may chain
	DefaultMaxDepth = 10
)

var errEmptyOutput = errors.New("handler printed no path")

// Option function to configure a Dispatcher
type Option func(*Dispatcher)

// Dispatcher turns resolved directories into responses
type Dispatcher struct {
	fs       vfs.VFS
	resolver *resolver.Resolver
	runner   Runner
	timeout  time.Duration
	maxDepth int
}

// New creates a Dispatcher with default values that can be configured via Option functions
func New(fs vfs.VFS, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		fs:       fs,
		resolver: resolver.New(fs),
		runner:   ExecRunner{},
		timeout:  DefaultTimeout,
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// WithRunner replaces the process runner
func WithRunner(runner Runner) Option {
	return func(d *Dispatcher) {
		d.runner = runner
	}
}

// WithResolver replaces the resolver handler output is resolved through
func WithResolver(r *resolver.Resolver) Option {
	return func(d *Dispatcher) {
		d.resolver = r
	}
}

// WithTimeout sets the time a handler may run before it is killed, zero
// disables the timeout
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithMaxDepth sets how many handlers a single request may chain
func WithMaxDepth(depth int) Option {
	return func(d *Dispatcher) {
		d.maxDepth = depth
	}
}

// Dispatch serves dir. Dynamic directories run their handler with scratchDir
// as the only argument; the printed path is resolved, relative to the
// handler's directory, and served in turn.
func (d *Dispatcher) Dispatch(ctx context.Context, dir, scratchDir string) (*responsedir.Response, error) {
	for hops := 0; ; hops++ {
		kind, handler, err := responsedir.Classify(ctx, d.fs, dir)
		if err != nil {
			return nil, err
		}

		switch kind {
		case responsedir.Static:
			return responsedir.LoadStatic(ctx, d.fs, dir)
		case responsedir.Unusable:
			return nil, fmt.Errorf("%w: %s holds neither a handler nor a static response", ErrNotFound, dir)
		}

		if hops >= d.maxDepth {
			return nil, fmt.Errorf("%w: %s not run after %d handlers", ErrTooManyHops, handler, hops)
		}

		next, err := d.invoke(ctx, handler, scratchDir)
		if err != nil {
			return nil, err
		}

		dir, err = d.resolver.Resolve(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("%w: output of %s: %v", ErrNotFound, handler, err)
		}
	}
}

// invoke runs handler and returns the absolute path it printed
func (d *Dispatcher) invoke(ctx context.Context, handler, scratchDir string) (string, error) {
	if err := d.fs.Access(ctx, handler, unix.X_OK); err != nil {
		metrics.HandlerInvocations.WithLabelValues("forbidden").Inc()
		return "", fmt.Errorf("%w: %v", ErrForbidden, err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := d.runner.Run(ctx, handler, scratchDir)
	metrics.HandlerDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.HandlerInvocations.WithLabelValues("timeout").Inc()
		} else {
			metrics.HandlerInvocations.WithLabelValues("failure").Inc()
		}

		return "", &ExecError{Handler: handler, Err: err}
	}

	if result.ExitCode != 0 {
		metrics.HandlerInvocations.WithLabelValues("failure").Inc()

		return "", &ExecError{
			Handler:  handler,
			ExitCode: result.ExitCode,
			Stderr:   string(result.Stderr),
			Err:      fmt.Errorf("exit status %d", result.ExitCode),
		}
	}

	output := strings.TrimSpace(string(result.Stdout))
	if output == "" {
		metrics.HandlerInvocations.WithLabelValues("failure").Inc()

		return "", &ExecError{Handler: handler, Stderr: string(result.Stderr), Err: errEmptyOutput}
	}

	metrics.HandlerInvocations.WithLabelValues("success").Inc()

	if !filepath.IsAbs(output) {
		output = filepath.Join(filepath.Dir(handler), output)
	}

	log.WithFields(log.Fields{
		"handler": handler,
		"output":  output,
		"stderr":  string(result.Stderr),
	}).Debug("dynamic handler output")

	return output, nil
}
