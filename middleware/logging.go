package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/ortizmas/whats-send/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if !j.ID.IsNil() {
			logger = logger.With(slog.String("job", j.ID.String()))
		}
		logger.Info("job started",
			slog.String("action", string(j.Action)),
			slog.String("session", j.Session),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("action", string(j.Action)),
				slog.String("session", j.Session),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("action", string(j.Action)),
				slog.String("session", j.Session),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
