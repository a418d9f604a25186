package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/config"
)

// EinoDebugger starts the eino visual debugger. It must be started before the
// analysis graph is compiled so the graph gets registered.
type EinoDebugger struct {
	enabled bool
	port    int
	logger  zerolog.Logger
	init    func(ctx context.Context) error
}

func NewEinoDebugger(cfg config.Config, logger zerolog.Logger) *EinoDebugger {
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		logger:  logger,
		init: func(ctx context.Context) error {
			return devops.Init(ctx)
		},
	}
}

func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	d.logger.Info().Int("port", d.port).Msg("initializing eino visual debug plugin")
	if err := d.init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info().Str("url", d.URL()).Msg("eino debug server ready")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) URL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
