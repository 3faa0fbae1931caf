package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Engine = (*Loopback)(nil)

// Loopback is a development engine. Sessions become ready immediately,
// cold starts emit a synthetic QR challenge, and sends are logged instead
// of delivered. It lets a full worker/gateway deployment run without a
// real automation backend attached.
type Loopback struct {
	logger *slog.Logger
}

// NewLoopback creates a Loopback engine.
func NewLoopback(logger *slog.Logger) *Loopback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loopback{logger: logger}
}

// Start brings up a synthetic session. A cold start (no token) emits one
// QR challenge; either way the session reports CONNECTED and hands back a
// token so the resume path is exercised end to end.
func (l *Loopback) Start(_ context.Context, opts StartOptions) (Client, error) {
	if opts.Token == nil && opts.OnQR != nil {
		opts.OnQR("data:image/png;base64,loopback-" + opts.Session)
	}
	if opts.OnStatus != nil {
		opts.OnStatus("CONNECTED")
	}
	if opts.OnToken != nil {
		token, _ := json.Marshal(map[string]string{
			"session":  opts.Session,
			"issuedAt": time.Now().UTC().Format(time.RFC3339),
		})
		opts.OnToken(token)
	}

	l.logger.Info("loopback session started", slog.String("session", opts.Session))
	return &loopbackClient{session: opts.Session, logger: l.logger}, nil
}

type loopbackClient struct {
	session string
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (c *loopbackClient) SendText(_ context.Context, number, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("engine: session %s closed", c.session)
	}
	c.logger.Info("loopback send",
		slog.String("session", c.session),
		slog.String("number", number),
		slog.String("message", message),
	)
	return nil
}

func (c *loopbackClient) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
