// Package engine defines the contract with the session automation engine,
// the external component that actually drives a live messaging session.
// The dispatch layer treats it as opaque: start a session (optionally from
// a persisted token), send text through it, and receive QR, status, and
// token-refresh callbacks.
package engine

import (
	"context"
	"encoding/json"
)

// StartOptions configures a session start. Callbacks are optional; the
// engine invokes them from its own goroutines, possibly many times over
// the session's life.
type StartOptions struct {
	// Session is the stable session key.
	Session string

	// Token is a previously persisted credential to resume from. Nil means
	// a cold start, which will surface a QR pairing challenge.
	Token json.RawMessage

	// OnQR is called with each pairing challenge the engine emits.
	OnQR func(qr string)

	// OnStatus is called with engine status-change notifications.
	OnStatus func(status string)

	// OnToken is called whenever the engine's session state changes with
	// the current credential token, so it can be persisted for resume.
	OnToken func(token json.RawMessage)
}

// Client is a live session handle.
type Client interface {
	// SendText delivers a text message to the given number.
	SendText(ctx context.Context, number, message string) error

	// Close tears the session down.
	Close(ctx context.Context) error
}

// Engine starts sessions. Implementations wrap a concrete automation
// backend; the dispatch layer never looks inside.
type Engine interface {
	Start(ctx context.Context, opts StartOptions) (Client, error)
}
