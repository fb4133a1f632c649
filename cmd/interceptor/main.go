// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command interceptor passively watches a link, decides per TCP connection
// whether to let it run, log it, or kill it with a forged RST, and feeds
// its DNS learner from observed responses. It takes no arguments: the
// config path, log sink, and capture device all come from ./test_config.toml.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"grimm.is/interceptor/internal/capture"
	"grimm.is/interceptor/internal/config"
	"grimm.is/interceptor/internal/dnslearn"
	ierrors "grimm.is/interceptor/internal/errors"
	"grimm.is/interceptor/internal/logging"
	"grimm.is/interceptor/internal/metrics"
	"grimm.is/interceptor/internal/resolver"
)

// metricsAddr is where /metrics and /healthz are served. Loopback-only:
// this is an operator-facing surface, not something the spec's capture
// path depends on.
const metricsAddr = "127.0.0.1:9090"

func main() {
	if err := run(); err != nil {
		log.Printf("[INTERCEPTOR] fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w (code=%s)", err, ierrors.Code(err))
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Close()

	src, err := capture.Open(cfg.Interface)
	if err != nil {
		return fmt.Errorf("capture open: %w", err)
	}
	defer src.Close()

	m := metrics.New()
	go func() {
		if err := http.ListenAndServe(metricsAddr, m.Router()); err != nil {
			logger.Warning("metrics listener stopped: %v", err)
		}
	}()

	loop := &capture.Loop{
		Source:   src,
		Rules:    cfg.Rules,
		Learner:  dnslearn.New(),
		Resolver: resolver.New(),
		Logger:   logger,
		Metrics:  m,
	}

	logger.Info("interceptor starting on interface %q with %d rules", cfg.Interface, len(cfg.Rules))
	return loop.Run()
}
