// Package outcome defines the asynchronous results workers report back to
// the gateway side, and the cache contract that makes the most recent
// result per (session, event) pair retrievable for a short window.
package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event identifies the kind of outcome a worker reported.
type Event string

const (
	// EventQRCode carries a pairing challenge the caller must scan.
	EventQRCode Event = "qrCode"
	// EventStatus carries an engine status-change notification.
	EventStatus Event = "status"
	// EventSessionReady signals the session is bound and usable.
	EventSessionReady Event = "sessionReady"
	// EventMessageSent echoes a successfully delivered message.
	EventMessageSent Event = "messageSent"
	// EventMessageError signals a send that could not be attempted.
	EventMessageError Event = "messageError"
	// EventError carries any uncaught job-handling failure.
	EventError Event = "error"
)

// Outcome is a single result record. Only the fields relevant to its Event
// are populated; the zero values are omitted on the wire.
type Outcome struct {
	Event   Event  `json:"event"`
	Session string `json:"session"`
	Worker  string `json:"worker,omitempty"`
	QR      string `json:"qr,omitempty"`
	Status  string `json:"status,omitempty"`
	Number  string `json:"number,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// QRCode builds a qrCode outcome.
func QRCode(session, qr string) *Outcome {
	return &Outcome{Event: EventQRCode, Session: session, QR: qr}
}

// Status builds a status outcome.
func Status(session, worker, status string) *Outcome {
	return &Outcome{Event: EventStatus, Session: session, Worker: worker, Status: status}
}

// SessionReady builds a sessionReady outcome.
func SessionReady(session, worker string) *Outcome {
	return &Outcome{Event: EventSessionReady, Session: session, Worker: worker}
}

// MessageSent builds a messageSent outcome echoing the delivered payload.
func MessageSent(session, worker, number, message string) *Outcome {
	return &Outcome{Event: EventMessageSent, Session: session, Worker: worker, Number: number, Message: message}
}

// MessageError builds a messageError outcome with a machine-readable reason.
func MessageError(session, reason string) *Outcome {
	return &Outcome{Event: EventMessageError, Session: session, Reason: reason}
}

// Failure builds an error outcome from an uncaught job-handling failure.
func Failure(session, worker string, err error) *Outcome {
	return &Outcome{Event: EventError, Session: session, Worker: worker, Message: err.Error()}
}

// Encode serialises the outcome to its wire form.
func (o *Outcome) Encode() ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("whatssend/outcome: encode: %w", err)
	}
	return data, nil
}

// Decode parses a wire-form outcome. Unknown event names are preserved
// rather than rejected: the cache stores whatever workers report.
func Decode(data []byte) (*Outcome, error) {
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("whatssend/outcome: decode: %w", err)
	}
	return &o, nil
}

// Cache is the persistence contract for retrievable outcomes. Only the most
// recent payload per (session, event) pair is kept; each write resets the
// entry's TTL.
type Cache interface {
	// SetLast overwrites the cached payload for the pair with the given TTL.
	SetLast(ctx context.Context, session string, event Event, payload []byte, ttl time.Duration) error

	// GetLast returns the cached payload for the pair, or (nil, nil) if the
	// pair has no live entry.
	GetLast(ctx context.Context, session string, event Event) ([]byte, error)
}
