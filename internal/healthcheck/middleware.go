package healthcheck

import (
	"net/http"
)

// NewMiddleware is serving the application status check. The status path
// shadows any route of the same name; an empty statusPath disables it.
func NewMiddleware(handler http.Handler, statusPath string, check Check) http.Handler {
	if statusPath == "" {
		return handler
	}

	status := Handler(check)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == statusPath {
			status.ServeHTTP(w, r)

			return
		}

		handler.ServeHTTP(w, r)
	})
}
