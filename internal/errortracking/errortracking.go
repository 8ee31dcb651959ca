// Package errortracking reports daemon and handler failures to Sentry through
// labkit.
package errortracking

import (
	"context"
	"errors"
	"net/http"

	"gitlab.com/gitlab-org/labkit/errortracking"
)

// CaptureOption alias to avoid importing labkit/errortracking in internal packages
type CaptureOption = errortracking.CaptureOption

// Configure sends captured errors to the Sentry project behind dsn. Without
// a dsn, captured errors are dropped.
func Configure(dsn, environment, version string) error {
	if dsn == "" {
		return nil
	}

	return errortracking.Initialize(
		errortracking.WithSentryDSN(dsn),
		errortracking.WithSentryEnvironment(environment),
		errortracking.WithVersion(version),
		errortracking.WithLoggerName("chora"),
	)
}

// WithField attaches a tag to the captured event
func WithField(key, value string) CaptureOption {
	return errortracking.WithField(key, value)
}

// Reportable is false for errors caused by the client going away
func Reportable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CaptureErrWithReqAndStackTrace reports err along with r and the stack trace
func CaptureErrWithReqAndStackTrace(err error, r *http.Request, fields ...CaptureOption) {
	if !Reportable(err) {
		return
	}

	errortracking.Capture(err, append(fields,
		errortracking.WithContext(r.Context()),
		errortracking.WithRequest(r),
		errortracking.WithStackTrace(),
	)...)
}

// CaptureErrWithStackTrace reports err along with the stack trace
func CaptureErrWithStackTrace(err error, fields ...CaptureOption) {
	if !Reportable(err) {
		return
	}

	errortracking.Capture(err, append(fields, errortracking.WithStackTrace())...)
}
