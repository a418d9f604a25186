package pipeline

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/rs/zerolog"
)

type startKey struct{}

// newLoggerCallback reports node timings and errors of the stage graph.
func newLoggerCallback(logger zerolog.Logger) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			if info == nil {
				return ctx
			}
			logger.Debug().Str("node", info.Name).Str("component", string(info.Component)).Msg("node start")
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			if info == nil {
				return ctx
			}
			evt := logger.Debug().Str("node", info.Name)
			if started, ok := ctx.Value(startKey{}).(time.Time); ok {
				evt = evt.Dur("elapsed", time.Since(started))
			}
			evt.Msg("node end")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			logger.Error().Err(err).Str("node", name).Msg("node error")
			return ctx
		}).
		Build()
}
