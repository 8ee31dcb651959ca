// Package logging sets up the daemon and access loggers on top of labkit.
package logging

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"gitlab.com/gitlab-org/labkit/correlation"
	"gitlab.com/gitlab-org/labkit/log"
)

const (
	formatJSON     = "json"
	formatText     = "text"
	formatCombined = "combined"
)

func normalizeFormat(format string) string {
	if format == "" {
		return formatJSON
	}

	return format
}

func levelFor(verbose bool) string {
	if verbose {
		return "trace"
	}

	return "info"
}

// ConfigureLogging initializes the standard logger. The returned closer
// releases the log output and must be closed on exit.
func ConfigureLogging(format string, verbose bool) (io.Closer, error) {
	return log.Initialize(
		log.WithFormatter(normalizeFormat(format)),
		log.WithLogLevel(levelFor(verbose)),
	)
}

// accessLogger writes access lines through the standard logger for
// structured formats. Text logs get a separate logger in combined format.
func accessLogger(format string) (*logrus.Logger, error) {
	if normalizeFormat(format) != formatText {
		return logrus.StandardLogger(), nil
	}

	logger := log.New()
	if _, err := log.Initialize(log.WithLogger(logger), log.WithFormatter(formatCombined)); err != nil {
		return nil, err
	}

	return logger, nil
}

// BasicAccessLogger logs one line per request served by handler. Fields
// returned by extra override the default request fields.
func BasicAccessLogger(handler http.Handler, format string, extra log.ExtraFieldsGeneratorFunc) (http.Handler, error) {
	logger, err := accessLogger(format)
	if err != nil {
		return nil, err
	}

	return log.AccessLogger(handler,
		log.WithAccessLogger(logger),
		log.WithExtraFields(requestFields(extra)),
		log.WithXFFAllowed(func(string) bool { return false }),
	), nil
}

func requestFields(extra log.ExtraFieldsGeneratorFunc) log.ExtraFieldsGeneratorFunc {
	return func(r *http.Request) log.Fields {
		fields := log.Fields{
			"correlation_id": correlation.ExtractFromContext(r.Context()),
			"chora_method":   r.Method,
			"chora_path":     r.URL.Path,
		}

		if extra == nil {
			return fields
		}

		for k, v := range extra(r) {
			fields[k] = v
		}

		return fields
	}
}

// LogRequest returns a logger entry carrying the correlation id, method and
// path of r
func LogRequest(r *http.Request) *logrus.Entry {
	return log.WithFields(log.Fields{
		"correlation_id": correlation.ExtractFromContext(r.Context()),
		"method":         r.Method,
		"path":           r.URL.Path,
	})
}
