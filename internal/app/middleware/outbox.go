package middleware

import (
	"context"
	"log/slog"

	"rentspot/internal/app/commands"
	"rentspot/internal/app/outbox"
)

// OutboxFlush flushes events recorded by a successful command. The command's
// effect is already stored by then, so a flush failure is logged and the
// result is still returned; failing the call would invite a duplicate retry.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(context.WithoutCancel(ctx)); err != nil {
				logger.Error("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
