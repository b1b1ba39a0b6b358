package conversion

import (
	"sync"

	"github.com/sammcj/mcp-fileconv/internal/config"
	"github.com/sammcj/mcp-fileconv/internal/failurelog"
	"github.com/sirupsen/logrus"
)

var (
	defaultMu       sync.Mutex
	defaultCfg      *config.Config
	defaultLogger   *logrus.Logger
	defaultFailures *failurelog.Logger

	defaultOnce    sync.Once
	defaultService *Service
	defaultErr     error
)

// Configure sets what Default builds from. It has no effect once Default has
// been called.
func Configure(cfg *config.Config, failures *failurelog.Logger, logger *logrus.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCfg = cfg
	defaultFailures = failures
	defaultLogger = logger
}

// Default returns the process-wide Service, probing capabilities and building
// it on first use. Later calls return the same instance.
func Default() (*Service, error) {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		cfg, failures, logger := defaultCfg, defaultFailures, defaultLogger
		defaultMu.Unlock()

		if cfg == nil {
			cfg, defaultErr = config.Load()
			if defaultErr != nil {
				return
			}
		}
		if logger == nil {
			logger = logrus.StandardLogger()
		}
		defaultService, defaultErr = New(cfg, ProbeCapabilities(cfg, logger), failures, logger)
	})
	return defaultService, defaultErr
}
