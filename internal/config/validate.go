package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"gitlab.com/chora/chora/internal/customheaders"
)

var (
	ErrNoListener              = errors.New("no listener defined, please specify at least one --listen-* flag")
	ErrRootNotExist            = errors.New("root directory does not exist")
	ErrRootNotDir              = errors.New("root is not a directory")
	ErrInvalidHandlerTimeout   = errors.New("handler-timeout must be greater than 0")
	ErrInvalidMaxHandlerDepth  = errors.New("max-handler-depth must be greater than 0")
	ErrInvalidMaxRequestBody   = errors.New("max-request-body must not be negative")
	ErrInvalidScratchDir       = errors.New("scratch-dir is not a directory")
	ErrInvalidRateLimitSetting = errors.New("rate-limit-source-ip-burst must be greater than 0 when rate limiting is enabled")
)

// Validate checks the whole configuration and reports every problem found
func Validate(config *Config) error {
	var result *multierror.Error

	result = multierror.Append(result,
		validateListeners(config),
		validateRoot(config.General.RootDir),
		validateDispatch(config.Dispatch),
		validateRateLimit(config.RateLimit),
	)

	if _, err := customheaders.ParseHeaderString(config.General.CustomHeaders); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func validateListeners(config *Config) error {
	if config.ListenHTTPStrings.Len() == 0 &&
		config.ListenProxyStrings.Len() == 0 &&
		config.ListenProxyv2Strings.Len() == 0 {
		return ErrNoListener
	}

	return nil
}

func validateRoot(root string) error {
	fi, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRootNotExist, root)
	}
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}

	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}

	return nil
}

func validateDispatch(config Dispatch) error {
	var result *multierror.Error

	if config.HandlerTimeout <= 0 {
		result = multierror.Append(result, ErrInvalidHandlerTimeout)
	}
	if config.MaxHandlerDepth <= 0 {
		result = multierror.Append(result, ErrInvalidMaxHandlerDepth)
	}
	if config.MaxRequestBody < 0 {
		result = multierror.Append(result, ErrInvalidMaxRequestBody)
	}

	if config.ScratchDir != "" {
		if fi, err := os.Stat(config.ScratchDir); err != nil || !fi.IsDir() {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrInvalidScratchDir, config.ScratchDir))
		}
	}

	return result.ErrorOrNil()
}

func validateRateLimit(config RateLimit) error {
	if config.SourceIPLimitPerSecond > 0 && config.SourceIPBurst <= 0 {
		return ErrInvalidRateLimitSetting
	}

	return nil
}
