package handlers

import (
	"net/http"

	"github.com/rs/cors"
)

// route trees may define any of these, preflight requests for other methods
// are refused
var corsHandler = cors.New(cors.Options{
	AllowedMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	},
	AllowedHeaders: []string{"*"},
})

// CorsHandler wraps handler with cross-origin request support unless disabled
func CorsHandler(disabled bool, handler http.Handler) http.Handler {
	if disabled {
		return handler
	}

	return corsHandler.Handler(handler)
}
