// Package serving turns requests into responses by resolving them against a
// route tree on disk.
package serving

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"gitlab.com/chora/chora/internal/dispatch"
	"gitlab.com/chora/chora/internal/errortracking"
	"gitlab.com/chora/chora/internal/httperrors"
	"gitlab.com/chora/chora/internal/logging"
	"gitlab.com/chora/chora/internal/resolver"
	"gitlab.com/chora/chora/internal/responsedir"
	"gitlab.com/chora/chora/internal/snapshot"
	"gitlab.com/chora/chora/internal/vfs"
	"gitlab.com/chora/chora/metrics"
)

// ErrInvalidPath is returned for request paths and methods that cannot name
// a directory below the root
var ErrInvalidPath = errors.New("invalid route path")

// Option function to configure Serving
type Option func(*Serving)

// Serving resolves requests against the route tree below root
type Serving struct {
	root         string
	fs           vfs.VFS
	resolver     *resolver.Resolver
	dispatcher   *dispatch.Dispatcher
	dispatchOpts []dispatch.Option
	scratchDir   string
	maxBody      int64
}

// New creates a Serving for the route tree at root with default values that
// can be configured via Option functions
func New(root string, fs vfs.VFS, opts ...Option) *Serving {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	s := &Serving{
		root:    filepath.Clean(root),
		fs:      fs,
		maxBody: snapshot.DefaultMaxBody,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.resolver = resolver.New(fs, resolver.WithBase(s.root))
	s.dispatcher = dispatch.New(fs, append([]dispatch.Option{dispatch.WithResolver(s.resolver)}, s.dispatchOpts...)...)

	return s
}

// WithDispatchOptions configures the dispatcher running dynamic handlers
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(s *Serving) {
		s.dispatchOpts = append(s.dispatchOpts, opts...)
	}
}

// WithScratchDir sets the parent directory of per-request scratch
// directories, the system temp directory when empty
func WithScratchDir(dir string) Option {
	return func(s *Serving) {
		s.scratchDir = dir
	}
}

// WithMaxRequestBody caps the request body handed to dynamic handlers, zero
// keeps the whole body
func WithMaxRequestBody(n int64) Option {
	return func(s *Serving) {
		s.maxBody = n
	}
}

// Target maps an escaped URL path and method onto the route directory they
// name. Segments are not percent-decoded. Empty and "." segments are
// dropped; ".." segments are rejected.
func Target(root, urlPath, method string) (string, error) {
	if method == "" || method == "." || method == ".." || strings.ContainsAny(method, `/\`) {
		return "", fmt.Errorf("%w: method %q", ErrInvalidPath, method)
	}

	parts := []string{root}

	for _, segment := range strings.Split(urlPath, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, urlPath)
		}

		parts = append(parts, segment)
	}

	return filepath.Join(append(parts, method)...), nil
}

// Handle resolves r to a response. Failures are turned into error pages, so
// the returned response is never nil.
func (s *Serving) Handle(r *http.Request) *responsedir.Response {
	resp, dir, err := s.handle(r)

	logger := logging.LogRequest(r).WithField("route", dir)

	if err == nil {
		metrics.Responses.WithLabelValues("static").Inc()
		logger.WithField("status", resp.Status).Infof("%s %s -> %d", r.Method, r.URL.Path, resp.Status)

		return resp
	}

	status, outcome := classify(err)
	metrics.Responses.WithLabelValues(outcome).Inc()

	logger = logger.WithError(err).WithField("status", status)

	var execErr *dispatch.ExecError
	if errors.As(err, &execErr) {
		logger = logger.WithFields(log.Fields{
			"handler":        execErr.Handler,
			"handler_status": execErr.ExitCode,
			"handler_stderr": execErr.Stderr,
		})
	}

	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s -> %d", r.Method, r.URL.Path, status)
		errortracking.CaptureErrWithReqAndStackTrace(err, r, errortracking.WithField("route", dir))
	} else {
		logger.Infof("%s %s -> %d", r.Method, r.URL.Path, status)
	}

	return errorResponse(status)
}

// Ready fails while the route root is not a directory
func (s *Serving) Ready(ctx context.Context) error {
	if !vfs.IsDir(ctx, s.fs, s.root) {
		return fmt.Errorf("route root %s is not a directory", s.root)
	}

	return nil
}

// ServeHTTP writes the response for r
func (s *Serving) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.Handle(r).Serve(w); err != nil {
		logging.LogRequest(r).WithError(err).Debug("writing response failed")
	}
}

// handle returns the response for r along with the first directory the
// request resolved to
func (s *Serving) handle(r *http.Request) (*responsedir.Response, string, error) {
	ctx := r.Context()

	// segments are directory names as sent, so %2F never splits one
	target, err := Target(s.root, r.URL.EscapedPath(), r.Method)
	if err != nil {
		return nil, "", err
	}

	scratch, err := snapshot.NewScratch(s.scratchDir)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			logging.LogRequest(r).WithError(err).Warn("removing scratch directory failed")
		}
	}()

	if err := snapshot.Write(r, scratch.Path(), s.maxBody); err != nil {
		return nil, "", err
	}

	dir, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.dispatcher.Dispatch(ctx, dir, scratch.Path())

	return resp, dir, err
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidPath),
		errors.Is(err, resolver.ErrNotFound),
		errors.Is(err, dispatch.ErrNotFound),
		errors.Is(err, responsedir.ErrMissingArtifact):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, dispatch.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func errorResponse(status int) *responsedir.Response {
	var headers responsedir.Header
	for name, value := range httperrors.Headers {
		headers = headers.Add(name, value)
	}

	return &responsedir.Response{
		Status:  status,
		Body:    httperrors.Page(status),
		Headers: headers,
	}
}
