package middleware

import (
	"context"
	"log/slog"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/outbox"
)

// OutboxFlush hands recorded events to the outbox once a command succeeds.
// The write is already committed at that point, so a failed flush is logged
// and the events stay queued for the next flush or the relay worker.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.Warn("outbox flush deferred", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
