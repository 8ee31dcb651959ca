package healthcheck

import (
	"context"
	"net/http"

	"gitlab.com/chora/chora/internal/httperrors"
	"gitlab.com/chora/chora/internal/logging"
)

// Check reports why the daemon cannot serve requests, nil when it can
type Check func(ctx context.Context) error

// Handler is serving the application status check, 503 while check fails
func Handler(check Check) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		if check != nil {
			if err := check(r.Context()); err != nil {
				logging.LogRequest(r).WithError(err).Warn("status check failed")
				httperrors.Serve503(w)

				return
			}
		}

		w.Write([]byte("success\n"))
	})
}
