package ratelimiter

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"gitlab.com/chora/chora/internal/httperrors"
	"gitlab.com/chora/chora/internal/logging"
	"gitlab.com/chora/chora/internal/request"
)

// SourceIPLimiter answers 429 to clients that ran out of tokens. Behind
// listen-proxy the remote address is already the forwarded one.
func (rl *RateLimiter) SourceIPLimiter(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceIP := request.GetRemoteAddrWithoutPort(r)
		if rl.SourceIPAllowed(sourceIP) {
			handler.ServeHTTP(w, r)

			return
		}

		rl.blocked.WithLabelValues("true").Inc()

		logging.LogRequest(r).WithFields(log.Fields{
			"host":             request.GetHostWithoutPort(r),
			"remote_addr":      r.RemoteAddr,
			"source_ip":        sourceIP,
			"x_forwarded_for":  r.Header.Get("X-Forwarded-For"),
			"limit_per_second": rl.limit,
			"burst":            rl.burst,
		}).Info("source IP hit rate limit")

		httperrors.Serve429(w)
	})
}
