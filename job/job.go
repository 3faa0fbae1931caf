// Package job defines the dispatch job, the unit of work a caller submits
// and a worker consumes. Jobs are immutable once enqueued; the wire shape
// is the JSON contract shared by the gateway and every worker.
package job

import (
	"encoding/json"
	"fmt"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/id"
)

// Action identifies what a job asks a worker to do.
type Action string

const (
	// ActionStartSession asks the worker to claim the session, resuming from
	// a persisted credential when one exists anywhere in the vault.
	ActionStartSession Action = "startSession"
	// ActionSendMessage asks the worker to deliver a text message through an
	// active (or silently resumable) session.
	ActionSendMessage Action = "sendMessage"
)

// Job is a single dispatch request. Session is the affinity key; Number and
// Message are only meaningful for ActionSendMessage. ID correlates a job
// across gateway and worker logs; jobs submitted by callers that do not
// stamp one stay valid.
type Job struct {
	ID      id.ID  `json:"id,omitzero"`
	Action  Action `json:"action"`
	Session string `json:"session"`
	Number  string `json:"number,omitempty"`
	Message string `json:"message,omitempty"`
}

// StartSession builds a startSession job for the given session key.
func StartSession(session string) *Job {
	return &Job{ID: id.NewJobID(), Action: ActionStartSession, Session: session}
}

// SendMessage builds a sendMessage job.
func SendMessage(session, number, message string) *Job {
	return &Job{ID: id.NewJobID(), Action: ActionSendMessage, Session: session, Number: number, Message: message}
}

// Validate checks that the job carries everything its action requires.
func (j *Job) Validate() error {
	if j.Session == "" {
		return fmt.Errorf("%w: missing session", whatssend.ErrInvalidJob)
	}
	switch j.Action {
	case ActionStartSession:
		return nil
	case ActionSendMessage:
		if j.Number == "" || j.Message == "" {
			return fmt.Errorf("%w: sendMessage requires number and message", whatssend.ErrInvalidJob)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", whatssend.ErrUnknownAction, j.Action)
	}
}

// Encode serialises the job to its wire form.
func (j *Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("whatssend/job: encode: %w", err)
	}
	return data, nil
}

// Decode parses a wire-form job and validates it.
func Decode(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("whatssend/job: decode: %w", err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}
