package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/broker"
	"github.com/ortizmas/whats-send/engine"
	"github.com/ortizmas/whats-send/job"
	"github.com/ortizmas/whats-send/outcome"
)

// handleDelivery decodes and dispatches one job. Consuming the delivery is
// its acknowledgement; nothing is ever requeued, so a deterministically
// failing payload cannot loop. Any uncaught failure becomes an error
// outcome carrying the session and this worker's identity.
func (r *Runtime) handleDelivery(ctx context.Context, d broker.Delivery) {
	j, err := job.Decode(d.Body)
	if err != nil {
		r.logger.Warn("discarding undecodable job",
			slog.String("queue", d.Queue),
			slog.String("error", err.Error()),
		)
		return
	}

	err = r.chain(ctx, j, func(ctx context.Context) error {
		return r.dispatch(ctx, j)
	})
	if err != nil {
		r.publish(ctx, outcome.Failure(j.Session, r.id, err))
	}
}

func (r *Runtime) dispatch(ctx context.Context, j *job.Job) error {
	switch j.Action {
	case job.ActionStartSession:
		return r.startSession(ctx, j)
	case job.ActionSendMessage:
		return r.sendMessage(ctx, j)
	default:
		return fmt.Errorf("%w: %q", whatssend.ErrUnknownAction, j.Action)
	}
}

// startSession claims and starts the session. Starting an already-active
// (or currently resuming) local session is a no-op: exactly one
// sessionReady is emitted per effective start.
func (r *Runtime) startSession(ctx context.Context, j *job.Job) error {
	if !r.sessions.claim(j.Session) {
		r.logger.Debug("start ignored, session already hosted",
			slog.String("session", j.Session),
		)
		return nil
	}
	// Release the claim on any exit that did not activate, panics included,
	// so a later job can try a fresh start.
	started := false
	defer func() {
		if !started {
			r.sessions.fail(j.Session)
		}
	}()

	client, err := r.resume(ctx, j.Session, true)
	if err != nil {
		return err
	}

	r.sessions.activate(j.Session, client)
	started = true
	if err := r.tracker.Bind(ctx, j.Session, r.id); err != nil {
		// The session is up; a failed bind only costs affinity bookkeeping.
		r.logger.Warn("bind failed", slog.String("session", j.Session), slog.String("error", err.Error()))
	}
	r.publish(ctx, outcome.SessionReady(j.Session, r.id))
	return nil
}

// sendMessage delivers through a locally active session, silently resuming
// from a persisted credential when the session is not hosted here. A send
// never cold-starts: with no credential anywhere the job fails fast with a
// messageError outcome.
func (r *Runtime) sendMessage(ctx context.Context, j *job.Job) error {
	client := r.sessions.client(j.Session)
	if client == nil {
		token, err := r.vault.Find(ctx, j.Session)
		if err != nil {
			return err
		}
		if token == nil {
			r.publish(ctx, outcome.MessageError(j.Session, "session_not_active"))
			return nil
		}

		if !r.sessions.claim(j.Session) {
			// Another job is resuming this session right now; its start
			// wins and this send cannot use a half-open session.
			r.publish(ctx, outcome.MessageError(j.Session, "session_not_active"))
			return nil
		}
		started := false
		defer func() {
			if !started {
				r.sessions.fail(j.Session)
			}
		}()
		client, err = r.resumeWithToken(ctx, j.Session, token, false)
		if err != nil {
			return err
		}
		r.sessions.activate(j.Session, client)
		started = true
		if err := r.tracker.Bind(ctx, j.Session, r.id); err != nil {
			r.logger.Warn("bind failed", slog.String("session", j.Session), slog.String("error", err.Error()))
		}
	}

	if err := client.SendText(ctx, j.Number, j.Message); err != nil {
		return fmt.Errorf("whatssend/worker: send to %s: %w", j.Number, err)
	}

	r.logger.Info("message sent",
		slog.String("session", j.Session),
		slog.String("number", j.Number),
	)
	r.publish(ctx, outcome.MessageSent(j.Session, r.id, j.Number, j.Message))
	return nil
}

// resume looks up any persisted credential for the session and starts the
// engine with it; with none found the start is cold. interactive controls
// whether QR and status events are surfaced (a silent resume for a send
// reports neither).
func (r *Runtime) resume(ctx context.Context, sessionID string, interactive bool) (engine.Client, error) {
	token, err := r.vault.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		r.logger.Info("no credential found, starting fresh", slog.String("session", sessionID))
	} else {
		r.logger.Info("credential located, resuming", slog.String("session", sessionID))
	}
	return r.resumeWithToken(ctx, sessionID, token, interactive)
}

func (r *Runtime) resumeWithToken(ctx context.Context, sessionID string, token json.RawMessage, interactive bool) (engine.Client, error) {
	opts := engine.StartOptions{
		Session: sessionID,
		Token:   token,
		OnToken: func(tok json.RawMessage) {
			// Best-effort refresh: a stale persisted token beats a dead
			// session, so failures are logged and swallowed.
			if err := r.vault.Save(context.Background(), sessionID, r.id, tok); err != nil {
				r.logger.Warn("token save failed",
					slog.String("session", sessionID),
					slog.String("error", err.Error()),
				)
			}
		},
	}
	if interactive {
		opts.OnQR = func(qr string) {
			r.publish(context.Background(), outcome.QRCode(sessionID, qr))
		}
		opts.OnStatus = func(status string) {
			r.publish(context.Background(), outcome.Status(sessionID, r.id, status))
		}
	}

	client, err := r.engine.Start(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("whatssend/worker: start session %s: %w", sessionID, err)
	}
	return client, nil
}

// publish reports an outcome on the response queue, fire-and-forget.
func (r *Runtime) publish(ctx context.Context, o *outcome.Outcome) {
	body, err := o.Encode()
	if err != nil {
		r.logger.Error("outcome encode failed", slog.String("error", err.Error()))
		return
	}
	if err := r.broker.Publish(ctx, broker.ResponseQueue, body); err != nil {
		r.logger.Error("outcome publish failed",
			slog.String("event", string(o.Event)),
			slog.String("session", o.Session),
			slog.String("error", err.Error()),
		)
	}
}
