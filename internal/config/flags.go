package config

import (
	"time"

	"github.com/namsral/flag"

	"gitlab.com/chora/chora/internal/dispatch"
	"gitlab.com/chora/chora/internal/snapshot"
)

var (
	rootDir         = flag.String("root", ".", "The directory holding the route tree")
	useHTTP2        = flag.Bool("use-http2", true, "Serve cleartext HTTP/2 (h2c) next to HTTP/1.1")
	handlerTimeout  = flag.Duration("handler-timeout", dispatch.DefaultTimeout, "Time a dynamic handler may run before it is killed")
	maxHandlerDepth = flag.Int("max-handler-depth", dispatch.DefaultMaxDepth, "Maximum number of dynamic handlers a single request may chain")
	scratchDir      = flag.String("scratch-dir", "", "The directory per-request scratch directories are created in, defaults to the system temp directory")
	maxRequestBody  = flag.Int64("max-request-body", snapshot.DefaultMaxBody, "Maximum number of request body bytes handed to dynamic handlers, 0 for unlimited")

	// HTTP rate limits
	rateLimitSourceIP      = flag.Float64("rate-limit-source-ip", 0.0, "Rate limit HTTP requests per second from a single IP, 0 means is disabled")
	rateLimitSourceIPBurst = flag.Int("rate-limit-source-ip-burst", 100, "Rate limit HTTP requests from a single IP, maximum burst allowed per second")

	statusPath             = flag.String("status-path", "", "The url path for a status page, e.g., /-/status")
	metricsAddress         = flag.String("metrics-address", "", "The address to listen on for metrics requests")
	sentryDSN              = flag.String("sentry-dsn", "", "The address for sending sentry crash reporting to")
	sentryEnvironment      = flag.String("sentry-environment", "", "The environment for sentry crash reporting")
	propagateCorrelationID = flag.Bool("propagate-correlation-id", false, "Reuse existing Correlation-ID from the incoming request header `X-Request-ID` if present")
	logFormat              = flag.String("log-format", "json", "The log output format: 'text' or 'json'")
	logVerbose             = flag.Bool("log-verbose", false, "Verbose logging")

	maxConns     = flag.Int("max-conns", 0, "Limit on the number of concurrent connections to the HTTP or proxy listeners, 0 for no limit")
	maxURILength = flag.Int("max-uri-length", 2048, "Limit the length of URI, 0 for unlimited.")

	// HTTP server timeouts
	serverReadTimeout       = flag.Duration("server-read-timeout", 5*time.Second, "ReadTimeout is the maximum duration for reading the entire request, including the body. A zero or negative value means there will be no timeout.")
	serverReadHeaderTimeout = flag.Duration("server-read-header-timeout", time.Second, "ReadHeaderTimeout is the amount of time allowed to read request headers. A zero or negative value means there will be no timeout.")
	serverWriteTimeout      = flag.Duration("server-write-timeout", 0, "WriteTimeout is the maximum duration before timing out writes of the response. A zero or negative value means there will be no timeout.")
	serverKeepAlive         = flag.Duration("server-keep-alive", 15*time.Second, "KeepAlive specifies the keep-alive period for network connections accepted by this listener. If zero, keep-alives are enabled if supported by the protocol and operating system. If negative, keep-alives are disabled.")
	serverShutdownTimeout   = flag.Duration("server-shutdown-timeout", 30*time.Second, "Time in-flight requests get to complete on shutdown")

	disableCrossOriginRequests = flag.Bool("disable-cross-origin-requests", false, "Disable cross-origin requests")

	showVersion = flag.Bool("version", false, "Show version")

	// See initFlags()
	listenHTTP    = NewMultiStringFlag(",")
	listenProxy   = NewMultiStringFlag(",")
	listenProxyv2 = NewMultiStringFlag(",")

	header = NewMultiStringFlag(";;")
)

// initFlags will be called from LoadConfig
func initFlags() {
	flag.Var(&listenHTTP, "listen-http", "The address(es) to listen on for HTTP requests")
	flag.Var(&listenProxy, "listen-proxy", "The address(es) to listen on for requests from a reverse proxy setting X-Forwarded-* headers")
	flag.Var(&listenProxyv2, "listen-proxyv2", "The address(es) to listen on for PROXYv2 requests (https://www.haproxy.org/download/1.8/doc/proxy-protocol.txt)")
	flag.Var(&header, "header", "The additional http header(s) that should be send to the client")

	// read from -config=/path/to/chora-config
	flag.String(flag.DefaultConfigFlagname, "", "path to config file")

	flag.Parse()
}
