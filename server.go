package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	proxyproto "github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"gitlab.com/chora/chora/internal/netutil"
	"gitlab.com/chora/chora/metrics"
)

const (
	listenerHTTP    = "http"
	listenerProxy   = "proxy"
	listenerProxyv2 = "proxyv2"
	listenerMetrics = "metrics"
)

type listener struct {
	net.Listener
	kind    string
	handler http.Handler
}

type listenerConfig struct {
	addr      string
	kind      string
	isProxyV2 bool
	limiter   *netutil.Limiter
	handler   http.Handler
}

// createListeners binds every configured address up front so that a bad
// address fails the daemon before anything is served
func (a *theApp) createListeners() (listeners []listener, err error) {
	defer func() {
		if err != nil {
			closeAll(listeners)
		}
	}()

	pipeline, err := a.buildHandlerPipeline()
	if err != nil {
		return nil, err
	}

	direct, err := a.buildHandler(pipeline, false)
	if err != nil {
		return nil, err
	}

	proxied, err := a.buildHandler(pipeline, true)
	if err != nil {
		return nil, err
	}

	var limiter *netutil.Limiter
	if a.config.General.MaxConns > 0 {
		limiter = netutil.NewLimiterWithMetrics(
			a.config.General.MaxConns,
			metrics.LimitListenerMaxConns,
			metrics.LimitListenerConcurrentConns,
			metrics.LimitListenerWaitingConns,
		)
	}

	var configs []listenerConfig

	for _, addr := range a.config.ListenHTTPStrings.Split() {
		configs = append(configs, listenerConfig{addr: addr, kind: listenerHTTP, limiter: limiter, handler: direct})
	}

	for _, addr := range a.config.ListenProxyStrings.Split() {
		configs = append(configs, listenerConfig{addr: addr, kind: listenerProxy, limiter: limiter, handler: proxied})
	}

	// the PROXY protocol header already carries the client address
	for _, addr := range a.config.ListenProxyv2Strings.Split() {
		configs = append(configs, listenerConfig{addr: addr, kind: listenerProxyv2, isProxyV2: true, limiter: limiter, handler: direct})
	}

	if a.config.General.MetricsAddress != "" {
		configs = append(configs, listenerConfig{addr: a.config.General.MetricsAddress, kind: listenerMetrics, handler: metricsHandler()})
	}

	for _, config := range configs {
		l, err := a.listen(config)
		if err != nil {
			return listeners, err
		}

		log.WithFields(log.Fields{
			"listener": l.Addr().String(),
			"type":     config.kind,
		}).Debug("Set up listener")

		listeners = append(listeners, listener{Listener: l, kind: config.kind, handler: config.handler})
	}

	return listeners, nil
}

func (a *theApp) listen(config listenerConfig) (net.Listener, error) {
	l, err := net.Listen("tcp", config.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", config.addr, err)
	}

	if config.limiter != nil {
		l = netutil.SharedLimitListener(l, config.limiter)
	}

	l = netutil.KeepAliveListener(l, a.config.Server.ListenKeepAlive)

	if config.isProxyV2 {
		l = &proxyproto.Listener{
			Listener: l,
			Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
				return proxyproto.REQUIRE, nil
			},
		}
	}

	return l, nil
}

func (a *theApp) newServer(handler http.Handler) *http.Server {
	if a.config.General.HTTP2 {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	return &http.Server{
		Handler:           handler,
		ReadTimeout:       a.config.Server.ReadTimeout,
		ReadHeaderTimeout: a.config.Server.ReadHeaderTimeout,
		WriteTimeout:      a.config.Server.WriteTimeout,
	}
}

// serve runs a server per listener until ctx is done or one of them fails,
// then gives in-flight requests the shutdown timeout to complete
func (a *theApp) serve(ctx context.Context, listeners []listener) error {
	g, gctx := errgroup.WithContext(ctx)

	servers := make([]*http.Server, 0, len(listeners))

	for _, l := range listeners {
		l := l
		server := a.newServer(l.handler)
		servers = append(servers, server)

		g.Go(func() error {
			log.WithFields(log.Fields{
				"listener": l.Addr().String(),
				"type":     l.kind,
			}).Info("Serving requests")

			if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s listener %s: %w", l.kind, l.Addr(), err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()

		var result error
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				result = multierror.Append(result, err)
			}
		}

		return result
	})

	return g.Wait()
}

func metricsHandler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

func closeAll(listeners []listener) {
	for _, l := range listeners {
		if err := l.Close(); err != nil {
			log.WithError(err).WithField("listener", l.Addr().String()).Warn("closing listener failed")
		}
	}
}
