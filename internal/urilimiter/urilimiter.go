package urilimiter

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"gitlab.com/chora/chora/internal/httperrors"
	"gitlab.com/chora/chora/internal/logging"
)

// NewMiddleware answers 414 when the raw request URI, query included, is
// longer than limit bytes. A zero limit disables the check.
func NewMiddleware(handler http.Handler, limit int) http.Handler {
	if limit == 0 {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n := len(r.RequestURI); n > limit {
			logging.LogRequest(r).WithFields(log.Fields{
				"uri_length": n,
				"uri_limit":  limit,
			}).Debug("request URI too long")

			httperrors.Serve414(w)

			return
		}

		handler.ServeHTTP(w, r)
	})
}
