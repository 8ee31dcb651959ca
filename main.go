package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	cfg "gitlab.com/chora/chora/internal/config"
	"gitlab.com/chora/chora/internal/errortracking"
	"gitlab.com/chora/chora/internal/logging"
	"gitlab.com/chora/chora/metrics"
)

// VERSION stores the information about the semantic version of application
var VERSION = "dev"

// REVISION stores the information about the git revision of application
var REVISION = "HEAD"

func appMain() {
	config, err := cfg.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	printVersion(config.General.ShowVersion, VERSION)

	logCloser, err := logging.ConfigureLogging(config.Log.Format, config.Log.Verbose)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize logging")
	}
	defer logCloser.Close()

	log.WithFields(log.Fields{
		"version":  VERSION,
		"revision": REVISION,
	}).Print("chora daemon")

	if err := errortracking.Configure(config.Sentry.DSN, config.Sentry.Environment, fmt.Sprintf("%s-%s", VERSION, REVISION)); err != nil {
		log.WithError(err).Fatal("Failed to initialize error tracking")
	}

	cfg.LogConfig(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runApp(ctx, config); err != nil {
		fatal(err, "could not run chora daemon")
	}

	log.Info("chora daemon stopped")
}

func printVersion(showVersion bool, version string) {
	if showVersion {
		fmt.Fprintf(os.Stdout, "%s\n", version)
		os.Exit(0)
	}
}

func fatal(err error, message string) {
	errortracking.CaptureErrWithStackTrace(err)
	log.WithError(err).Fatal(message)
}

func main() {
	log.SetOutput(os.Stderr)

	metrics.MustRegister()

	appMain()
}
