package middleware

import (
	"context"
	"log/slog"
	"time"

	"rentspot/internal/app/commands"
)

// Logging records every command at debug level and failures at warn.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			if err != nil {
				logger.Warn("command failed", append(attrs, "error", err)...)
				return res, err
			}
			logger.Debug("command handled", attrs...)
			return res, nil
		})
	}
}
