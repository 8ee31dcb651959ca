package customheaders

import (
	"net/http"
)

// NewMiddleware returns middleware which inject custom headers into the
// response. Route HEADERS are added after them, so a route can repeat a
// name but not remove it.
func NewMiddleware(handler http.Handler, headers http.Header) http.Handler {
	if len(headers) == 0 {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddCustomHeaders(w, headers)

		handler.ServeHTTP(w, r)
	})
}
