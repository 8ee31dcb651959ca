package serving

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	testlog "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"gitlab.com/chora/chora/internal/dispatch"
	"gitlab.com/chora/chora/internal/testhelpers"
	"gitlab.com/chora/chora/internal/vfs/local"
	"gitlab.com/chora/chora/metrics"
)

func newServing(t *testing.T, opts ...Option) (*Serving, string, string) {
	t.Helper()

	fs, tmp := testhelpers.TmpDir(t)
	root := filepath.Join(tmp, "routes")
	require.NoError(t, os.MkdirAll(root, 0755))

	scratchBase := filepath.Join(tmp, "scratch")
	require.NoError(t, os.MkdirAll(scratchBase, 0755))

	opts = append([]Option{WithScratchDir(scratchBase)}, opts...)

	return New(root, fs, opts...), root, scratchBase
}

func serve(t *testing.T, s *Serving, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(method, target, body))

	return w
}

func requireScratchRemoved(t *testing.T, scratchBase string) {
	t.Helper()

	entries, err := os.ReadDir(scratchBase)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch directories must be removed once the request completes")
}

func TestServeRootPage(t *testing.T) {
	s, root, scratchBase := newServing(t)
	testhelpers.MakeStaticRoute(t, filepath.Join(root, "GET"), "200", "<h1>Root Page</h1>", "Content-Type: text/html")

	w := serve(t, s, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "<h1>Root Page</h1>", w.Body.String())
	require.Equal(t, "text/html", w.Header().Get("Content-Type"))
	requireScratchRemoved(t, scratchBase)
}

func TestServeTemplates(t *testing.T) {
	tests := []struct {
		name     string
		routes   []string
		method   string
		target   string
		wantBody string
	}{
		{
			name:     "template segment",
			routes:   []string{"users/__TEMPLATE__/GET"},
			method:   http.MethodGet,
			target:   "/users/123",
			wantBody: "users/__TEMPLATE__/GET",
		},
		{
			name:     "exact match wins",
			routes:   []string{"users/__TEMPLATE__/GET", "users/admin/GET"},
			method:   http.MethodGet,
			target:   "/users/admin",
			wantBody: "users/admin/GET",
		},
		{
			name:     "later segment substituted first",
			routes:   []string{"a/__TEMPLATE__/c/GET", "__TEMPLATE__/b/c/GET"},
			method:   http.MethodGet,
			target:   "/a/b/c",
			wantBody: "a/__TEMPLATE__/c/GET",
		},
		{
			name:     "any method",
			routes:   []string{"users/__TEMPLATE__"},
			method:   http.MethodDelete,
			target:   "/users",
			wantBody: "users/__TEMPLATE__",
		},
		{
			name:     "trailing and doubled slashes",
			routes:   []string{"users/42/GET"},
			method:   http.MethodGet,
			target:   "/users//42/",
			wantBody: "users/42/GET",
		},
		{
			name:     "encoded separator stays in one segment",
			routes:   []string{"files/a%2Fb/GET", "files/a/b/GET"},
			method:   http.MethodGet,
			target:   "/files/a%2Fb",
			wantBody: "files/a%2Fb/GET",
		},
		{
			name:     "encoded space is not decoded",
			routes:   []string{"hello%20world/GET"},
			method:   http.MethodGet,
			target:   "/hello%20world",
			wantBody: "hello%20world/GET",
		},
		{
			name:     "query string is not part of the route",
			routes:   []string{"search/GET"},
			method:   http.MethodGet,
			target:   "/search?q=chora",
			wantBody: "search/GET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root, _ := newServing(t)
			for _, route := range tt.routes {
				testhelpers.MakeStaticRoute(t, filepath.Join(root, route), "200", route, "")
			}

			w := serve(t, s, tt.method, tt.target, nil)

			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestServeDynamicRelativePath(t *testing.T) {
	s, root, scratchBase := newServing(t)

	dir := filepath.Join(root, "dynamic", "GET")
	testhelpers.MakeHandler(t, dir, "echo static_response", 0755)
	testhelpers.MakeStaticRoute(t, filepath.Join(dir, "static_response"), "200", "Dynamic response", "Content-Type: text/plain")

	w := serve(t, s, http.MethodGet, "/dynamic", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Dynamic response", w.Body.String())
	require.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	requireScratchRemoved(t, scratchBase)
}

func TestServeDynamicChain(t *testing.T) {
	s, root, _ := newServing(t)

	second := filepath.Join(root, "internal", "second")
	testhelpers.MakeHandler(t, filepath.Join(root, "first", "POST"), "echo "+second, 0755)
	testhelpers.MakeHandler(t, second, "echo done", 0755)
	testhelpers.MakeStaticRoute(t, filepath.Join(second, "done"), "201", "chained", "Location: /first/1")

	w := serve(t, s, http.MethodPost, "/first", strings.NewReader("payload"))

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "chained", w.Body.String())
	require.Equal(t, "/first/1", w.Header().Get("Location"))
}

func TestServeDynamicOutputThroughTemplate(t *testing.T) {
	s, root, _ := newServing(t)

	testhelpers.MakeHandler(t, filepath.Join(root, "login", "POST"), "echo ../../sessions/$(date +%s)", 0755)
	testhelpers.MakeStaticRoute(t, filepath.Join(root, "sessions", "__TEMPLATE__"), "200", "session", "")

	w := serve(t, s, http.MethodPost, "/login", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "session", w.Body.String())
}

func TestServeHandlerReadsSnapshot(t *testing.T) {
	s, root, scratchBase := newServing(t)

	dir := filepath.Join(root, "echo", "POST")
	testhelpers.MakeHandler(t, dir, `
echo "$1" > scratch_path
mkdir -p out
printf '200' > out/STATUS
printf 'Content-Type: text/plain' > out/HEADERS
{ cat "$1/REQUEST"; printf '\n%s\n' '---'; cat "$1/HEADERS"; printf '%s\n' '---'; cat "$1/DATA"; } > out/DATA
echo out`, 0755)

	r := httptest.NewRequest(http.MethodPost, "/echo?verbose=1", strings.NewReader(`{"name":"chora"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "POST /echo?verbose=1 HTTP/1.1\n---\nHost: example.com\nContent-Type: application/json\n---\n{\"name\":\"chora\"}", w.Body.String())

	scratchPath, err := os.ReadFile(filepath.Join(dir, "scratch_path"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(scratchPath), scratchBase))
	require.NoDirExists(t, strings.TrimSpace(string(scratchPath)))
	requireScratchRemoved(t, scratchBase)
}

func TestServeMaxRequestBody(t *testing.T) {
	s, root, _ := newServing(t, WithMaxRequestBody(4))

	dir := filepath.Join(root, "upload", "PUT")
	testhelpers.MakeHandler(t, dir, `
mkdir -p out
printf '200' > out/STATUS
: > out/HEADERS
cat "$1/DATA" > out/DATA
echo out`, 0755)

	w := serve(t, s, http.MethodPut, "/upload", strings.NewReader("0123456789"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0123", w.Body.String())
}

func TestServeHeaders(t *testing.T) {
	s, root, _ := newServing(t)
	testhelpers.MakeStaticRoute(t, filepath.Join(root, "cookies", "GET"), "200", "ok",
		"InvalidHeaderLine\nSet-Cookie: a=1\nX-Trace: a:b:c\nSet-Cookie: b=2\n")

	w := serve(t, s, http.MethodGet, "/cookies", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"a=1", "b=2"}, w.Header().Values("Set-Cookie"))
	require.Equal(t, "a:b:c", w.Header().Get("X-Trace"))
	require.Empty(t, w.Header().Get("InvalidHeaderLine"))
}

func TestServeErrors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, root string)
		method     string
		target     string
		wantStatus int
		wantBody   string
		outcome    string
	}{
		{
			name:       "nonexistent path",
			setup:      func(*testing.T, string) {},
			method:     http.MethodGet,
			target:     "/nonexistent/path",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
			outcome:    "not_found",
		},
		{
			name: "wrong method",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeStaticRoute(t, filepath.Join(root, "users", "GET"), "200", "users", "")
			},
			method:     http.MethodPost,
			target:     "/users",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
			outcome:    "not_found",
		},
		{
			name: "directory without artifacts",
			setup: func(t *testing.T, root string) {
				require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "GET"), 0755))
			},
			method:     http.MethodGet,
			target:     "/empty",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
			outcome:    "not_found",
		},
		{
			name: "malformed status",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeStaticRoute(t, filepath.Join(root, "broken", "GET"), "not_a_number", "test", "")
			},
			method:     http.MethodGet,
			target:     "/broken",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			outcome:    "error",
		},
		{
			name: "handler not executable",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeHandler(t, filepath.Join(root, "locked", "GET"), "echo next", 0644)
			},
			method:     http.MethodGet,
			target:     "/locked",
			wantStatus: http.StatusForbidden,
			wantBody:   "Forbidden",
			outcome:    "forbidden",
		},
		{
			name: "handler fails",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeHandler(t, filepath.Join(root, "failing", "GET"), `echo "Script failed" >&2; exit 1`, 0755)
			},
			method:     http.MethodGet,
			target:     "/failing",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			outcome:    "error",
		},
		{
			name: "handler prints nothing",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeHandler(t, filepath.Join(root, "silent", "GET"), "true", 0755)
			},
			method:     http.MethodGet,
			target:     "/silent",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			outcome:    "error",
		},
		{
			name: "handler output does not exist",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeHandler(t, filepath.Join(root, "lost", "GET"), "echo /this/path/does/not/exist", 0755)
			},
			method:     http.MethodGet,
			target:     "/lost",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
			outcome:    "not_found",
		},
		{
			name: "handler loops",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeHandler(t, filepath.Join(root, "loop", "GET"), "echo .", 0755)
			},
			method:     http.MethodGet,
			target:     "/loop",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			outcome:    "error",
		},
		{
			name: "parent segment",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeStaticRoute(t, filepath.Join(filepath.Dir(root), "secret", "GET"), "200", "secret", "")
			},
			method:     http.MethodGet,
			target:     "/../secret",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
			outcome:    "not_found",
		},
		{
			name: "parent method",
			setup: func(t *testing.T, root string) {
				testhelpers.MakeStaticRoute(t, filepath.Join(root, "users"), "200", "users", "")
			},
			method:     "..",
			target:     "/users/42",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
			outcome:    "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root, scratchBase := newServing(t, WithDispatchOptions(dispatch.WithMaxDepth(3)))
			tt.setup(t, root)

			before := testutil.ToFloat64(metrics.Responses.WithLabelValues(tt.outcome))

			w := serve(t, s, tt.method, tt.target, nil)

			require.Equal(t, tt.wantStatus, w.Code)
			require.Contains(t, w.Body.String(), tt.wantBody)
			require.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			require.Equal(t, before+1, testutil.ToFloat64(metrics.Responses.WithLabelValues(tt.outcome)))
			requireScratchRemoved(t, scratchBase)
		})
	}
}

func TestServeHandlerTimeout(t *testing.T) {
	s, root, scratchBase := newServing(t, WithDispatchOptions(dispatch.WithTimeout(200*time.Millisecond)))
	testhelpers.MakeHandler(t, filepath.Join(root, "slow", "GET"), "sleep 30\necho never", 0755)

	start := time.Now()
	w := serve(t, s, http.MethodGet, "/slow", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Less(t, time.Since(start), 10*time.Second)
	requireScratchRemoved(t, scratchBase)
}

func TestServeLogsHandlerStderr(t *testing.T) {
	hook := testlog.NewGlobal()

	s, root, _ := newServing(t)
	handler := testhelpers.MakeHandler(t, filepath.Join(root, "failing", "GET"), `echo "Script failed" >&2; exit 3`, 0755)

	w := serve(t, s, http.MethodGet, "/failing", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "Script failed")

	testhelpers.AssertLogContains(t, "GET /failing -> 500", hook.AllEntries())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "Script failed\n", entry.Data["handler_stderr"])
	require.Equal(t, 3, entry.Data["handler_status"])
	require.Equal(t, handler, entry.Data["handler"])
}

func TestServeLogsRequest(t *testing.T) {
	hook := testlog.NewGlobal()

	s, root, _ := newServing(t)
	testhelpers.MakeStaticRoute(t, filepath.Join(root, "users", "__TEMPLATE__", "GET"), "200", "user", "")

	serve(t, s, http.MethodGet, "/users/42", nil)

	testhelpers.AssertLogContains(t, "GET /users/42 -> 200", hook.AllEntries())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, filepath.Join(root, "users", "__TEMPLATE__", "GET"), entry.Data["route"])
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name    string
		urlPath string
		method  string
		want    string
		wantErr bool
	}{
		{name: "root", urlPath: "/", method: "GET", want: "/routes/GET"},
		{name: "empty path", urlPath: "", method: "GET", want: "/routes/GET"},
		{name: "nested", urlPath: "/users/123", method: "PATCH", want: "/routes/users/123/PATCH"},
		{name: "dot segments", urlPath: "/./users/./123/.", method: "GET", want: "/routes/users/123/GET"},
		{name: "parent segment", urlPath: "/users/../etc", method: "GET", wantErr: true},
		{name: "encoded separator", urlPath: "/files/a%2Fb", method: "GET", want: "/routes/files/a%2Fb/GET"},
		{name: "encoded parent segment", urlPath: "/files/%2E%2E", method: "GET", want: "/routes/files/%2E%2E/GET"},
		{name: "empty method", urlPath: "/", method: "", wantErr: true},
		{name: "dot method", urlPath: "/users", method: ".", wantErr: true},
		{name: "method with separator", urlPath: "/", method: "GET/..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Target("/routes", tt.urlPath, tt.method)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReady(t *testing.T) {
	s, root, _ := newServing(t)
	require.NoError(t, s.Ready(context.Background()))

	require.NoError(t, os.RemoveAll(root))

	err := s.Ready(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), root)
}

func TestNewRelativeRoot(t *testing.T) {
	_, tmp := testhelpers.TmpDir(t)
	testhelpers.MakeStaticRoute(t, filepath.Join(tmp, "users", "__TEMPLATE__", "GET"), "200", "template", "")
	testhelpers.MakeHandler(t, filepath.Join(tmp, "users", "POST"), "echo ../42/GET", 0755)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })

	s := New(".", &local.VFS{}, WithScratchDir(t.TempDir()))
	require.Equal(t, tmp, s.root)

	// handler output and direct requests resolve through the same template
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/users/42"},
		{http.MethodPost, "/users"},
	} {
		w := serve(t, s, tc.method, tc.target, nil)

		require.Equal(t, http.StatusOK, w.Code, tc.method)
		require.Equal(t, "template", w.Body.String(), tc.method)
	}
}
