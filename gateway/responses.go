package gateway

import (
	"context"
	"log/slog"

	"github.com/ortizmas/whats-send/broker"
	"github.com/ortizmas/whats-send/outcome"
)

// ConsumeResponses drains the response queue into the outcome cache until
// ctx is cancelled. Each payload overwrites the previous entry for its
// (session, event) pair with a fresh TTL. Malformed payloads are logged
// and dropped; the response stream must keep flowing.
func (g *Gateway) ConsumeResponses(ctx context.Context) error {
	if err := g.broker.Declare(ctx, broker.ResponseQueue); err != nil {
		return err
	}

	deliveries, err := g.broker.Consume(ctx, broker.ResponseQueue)
	if err != nil {
		return err
	}

	for d := range deliveries {
		o, err := outcome.Decode(d.Body)
		if err != nil || o.Session == "" || o.Event == "" {
			g.logger.Warn("discarding malformed outcome", slog.String("error", errString(err)))
			continue
		}

		if err := g.store.SetLast(ctx, o.Session, o.Event, d.Body, g.cfg.OutcomeTTL); err != nil {
			g.logger.Error("outcome cache write failed",
				slog.String("session", o.Session),
				slog.String("event", string(o.Event)),
				slog.String("error", err.Error()),
			)
		}
	}
	return ctx.Err()
}

func errString(err error) string {
	if err == nil {
		return "missing session or event"
	}
	return err.Error()
}
