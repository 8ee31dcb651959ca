package healthcheck_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/chora/chora/internal/healthcheck"
)

func TestHealthCheckHandler(t *testing.T) {
	u := "http://mock.example.com/-/healthcheck"

	tests := []struct {
		name       string
		check      healthcheck.Check
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no check",
			wantStatus: http.StatusOK,
			wantBody:   "success\n",
		},
		{
			name:       "passing check",
			check:      func(context.Context) error { return nil },
			wantStatus: http.StatusOK,
			wantBody:   "success\n",
		},
		{
			name:       "failing check",
			check:      func(context.Context) error { return errors.New("route root is gone") },
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := healthcheck.Handler(tt.check).ServeHTTP

			require.HTTPStatusCode(t, handler, http.MethodGet, u, nil, tt.wantStatus)
			require.HTTPBodyContains(t, handler, http.MethodGet, u, nil, tt.wantBody)
		})
	}
}
