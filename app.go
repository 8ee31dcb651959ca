package main

import (
	"context"
	"net/http"

	ghandlers "github.com/gorilla/handlers"
	"gitlab.com/gitlab-org/labkit/correlation"
	labmetrics "gitlab.com/gitlab-org/labkit/metrics"

	cfg "gitlab.com/chora/chora/internal/config"
	"gitlab.com/chora/chora/internal/customheaders"
	"gitlab.com/chora/chora/internal/dispatch"
	"gitlab.com/chora/chora/internal/handlers"
	"gitlab.com/chora/chora/internal/healthcheck"
	"gitlab.com/chora/chora/internal/logging"
	"gitlab.com/chora/chora/internal/ratelimiter"
	"gitlab.com/chora/chora/internal/serving"
	"gitlab.com/chora/chora/internal/urilimiter"
	"gitlab.com/chora/chora/internal/vfs"
	"gitlab.com/chora/chora/internal/vfs/local"
)

// registered once, every listener shares the same collectors
var metricsMiddleware = labmetrics.NewHandlerFactory(labmetrics.WithNamespace("chora"))

type theApp struct {
	config  *cfg.Config
	serving *serving.Serving
}

func newApp(config *cfg.Config) *theApp {
	return &theApp{
		config: config,
		serving: serving.New(
			config.General.RootDir,
			vfs.Instrumented(&local.VFS{}),
			serving.WithScratchDir(config.Dispatch.ScratchDir),
			serving.WithMaxRequestBody(config.Dispatch.MaxRequestBody),
			serving.WithDispatchOptions(
				dispatch.WithTimeout(config.Dispatch.HandlerTimeout),
				dispatch.WithMaxDepth(config.Dispatch.MaxHandlerDepth),
			),
		),
	}
}

// buildHandlerPipeline wraps the route tree with everything that runs before
// a request reaches it. Handlers are applied in reverse order of execution.
func (a *theApp) buildHandlerPipeline() (http.Handler, error) {
	customHeaders, err := customheaders.ParseHeaderString(a.config.General.CustomHeaders)
	if err != nil {
		return nil, err
	}

	handler := customheaders.NewMiddleware(a.serving, customHeaders)
	handler = handlers.CorsHandler(a.config.General.DisableCrossOriginRequests, handler)

	if a.config.RateLimit.SourceIPLimitPerSecond > 0 {
		rl := ratelimiter.New(
			ratelimiter.WithSourceIPLimitPerSecond(a.config.RateLimit.SourceIPLimitPerSecond),
			ratelimiter.WithSourceIPBurstSize(a.config.RateLimit.SourceIPBurst),
		)

		handler = rl.SourceIPLimiter(handler)
	}

	handler = urilimiter.NewMiddleware(handler, a.config.General.MaxURILength)
	handler = healthcheck.NewMiddleware(handler, a.config.General.StatusPath, a.serving.Ready)

	return handler, nil
}

// buildHandler wraps the pipeline for a listener. Proxy listeners trust
// the X-Forwarded-* headers of the upstream proxy.
func (a *theApp) buildHandler(pipeline http.Handler, proxied bool) (http.Handler, error) {
	handler, err := logging.BasicAccessLogger(pipeline, a.config.Log.Format, nil)
	if err != nil {
		return nil, err
	}

	handler = metricsMiddleware(handler)

	if proxied {
		handler = ghandlers.ProxyHeaders(handler)
	}

	correlationOpts := []correlation.InboundHandlerOption{
		correlation.WithSetResponseHeader(),
	}
	if a.config.General.PropagateCorrelationID {
		correlationOpts = append(correlationOpts, correlation.WithPropagation())
	}

	return correlation.InjectCorrelationID(handler, correlationOpts...), nil
}

func runApp(ctx context.Context, config *cfg.Config) error {
	a := newApp(config)

	listeners, err := a.createListeners()
	if err != nil {
		return err
	}

	return a.serve(ctx, listeners)
}
