package config

import (
	"time"

	"github.com/namsral/flag"
	log "github.com/sirupsen/logrus"
)

// Config stores all the config options relevant to chora.
type Config struct {
	General   General
	Dispatch  Dispatch
	RateLimit RateLimit
	Log       Log
	Sentry    Sentry
	Server    Server

	// These fields contain the raw strings passed for listen-http,
	// listen-proxy and listen-proxyv2 settings. The daemon binds one
	// listener per address.
	ListenHTTPStrings    MultiStringFlag
	ListenProxyStrings   MultiStringFlag
	ListenProxyv2Strings MultiStringFlag
}

// General groups settings that are general to chora and can not
// be categorized under other head.
type General struct {
	RootDir        string
	HTTP2          bool
	MaxConns       int
	MaxURILength   int
	MetricsAddress string
	StatusPath     string

	DisableCrossOriginRequests bool
	PropagateCorrelationID     bool

	ShowVersion bool

	CustomHeaders []string
}

// Dispatch groups settings for dynamic handlers and request snapshots
type Dispatch struct {
	HandlerTimeout  time.Duration
	MaxHandlerDepth int
	ScratchDir      string
	MaxRequestBody  int64
}

// RateLimit config struct
type RateLimit struct {
	SourceIPLimitPerSecond float64
	SourceIPBurst          int
}

// Log groups settings related to configuring logging
type Log struct {
	Format  string
	Verbose bool
}

// Sentry groups settings related to configuring Sentry
type Sentry struct {
	DSN         string
	Environment string
}

// Server groups the HTTP server timeouts
type Server struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ListenKeepAlive   time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() (*Config, error) {
	config := &Config{
		General: General{
			RootDir:                    *rootDir,
			HTTP2:                      *useHTTP2,
			MaxConns:                   *maxConns,
			MaxURILength:               *maxURILength,
			MetricsAddress:             *metricsAddress,
			StatusPath:                 *statusPath,
			DisableCrossOriginRequests: *disableCrossOriginRequests,
			PropagateCorrelationID:     *propagateCorrelationID,
			CustomHeaders:              header.Split(),
			ShowVersion:                *showVersion,
		},
		Dispatch: Dispatch{
			HandlerTimeout:  *handlerTimeout,
			MaxHandlerDepth: *maxHandlerDepth,
			ScratchDir:      *scratchDir,
			MaxRequestBody:  *maxRequestBody,
		},
		RateLimit: RateLimit{
			SourceIPLimitPerSecond: *rateLimitSourceIP,
			SourceIPBurst:          *rateLimitSourceIPBurst,
		},
		Log: Log{
			Format:  *logFormat,
			Verbose: *logVerbose,
		},
		Sentry: Sentry{
			DSN:         *sentryDSN,
			Environment: *sentryEnvironment,
		},
		Server: Server{
			ReadTimeout:       *serverReadTimeout,
			ReadHeaderTimeout: *serverReadHeaderTimeout,
			WriteTimeout:      *serverWriteTimeout,
			ListenKeepAlive:   *serverKeepAlive,
			ShutdownTimeout:   *serverShutdownTimeout,
		},

		ListenHTTPStrings:    listenHTTP,
		ListenProxyStrings:   listenProxy,
		ListenProxyv2Strings: listenProxyv2,
	}

	// the version flag must work without a valid configuration
	if config.General.ShowVersion {
		return config, nil
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LogConfig prints the configuration the daemon starts with
func LogConfig(config *Config) {
	log.WithFields(log.Fields{
		"default-config-filename":       flag.DefaultConfigFlagname,
		"disable-cross-origin-requests": config.General.DisableCrossOriginRequests,
		"handler-timeout":               config.Dispatch.HandlerTimeout,
		"header":                        config.General.CustomHeaders,
		"listen-http":                   config.ListenHTTPStrings.Split(),
		"listen-proxy":                  config.ListenProxyStrings.Split(),
		"listen-proxyv2":                config.ListenProxyv2Strings.Split(),
		"log-format":                    config.Log.Format,
		"max-conns":                     config.General.MaxConns,
		"max-handler-depth":             config.Dispatch.MaxHandlerDepth,
		"max-request-body":              config.Dispatch.MaxRequestBody,
		"max-uri-length":                config.General.MaxURILength,
		"metrics-address":               config.General.MetricsAddress,
		"propagate-correlation-id":      config.General.PropagateCorrelationID,
		"rate-limit-source-ip":          config.RateLimit.SourceIPLimitPerSecond,
		"rate-limit-source-ip-burst":    config.RateLimit.SourceIPBurst,
		"root":                          config.General.RootDir,
		"scratch-dir":                   config.Dispatch.ScratchDir,
		"server-shutdown-timeout":       config.Server.ShutdownTimeout,
		"status-path":                   config.General.StatusPath,
		"use-http2":                     config.General.HTTP2,
	}).Debug("Start daemon with configuration")
}

// LoadConfig parses configuration settings passed as command line arguments or
// via config file, and populates a Config object with those values
func LoadConfig() (*Config, error) {
	initFlags()

	return loadConfig()
}
