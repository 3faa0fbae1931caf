package whatssend

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("whatssend: no store configured")
	ErrStoreClosed = errors.New("whatssend: store closed")

	// Broker errors.
	ErrNoBroker          = errors.New("whatssend: no broker configured")
	ErrBrokerUnavailable = errors.New("whatssend: broker unavailable")
	ErrQueueNotDeclared  = errors.New("whatssend: queue not declared")
	ErrConsumerClosed    = errors.New("whatssend: consumer closed")
	ErrPublishAfterClose = errors.New("whatssend: publish after close")

	// Dispatch errors.
	ErrWorkerUnavailable = errors.New("whatssend: target worker not alive")
	ErrNoLiveWorkers     = errors.New("whatssend: no live workers")
	ErrNoCandidates      = errors.New("whatssend: no candidates for selection")

	// Registry errors.
	ErrWorkerNotFound = errors.New("whatssend: worker not found")

	// Session errors.
	ErrSessionNotActive = errors.New("whatssend: session not active")
	ErrNoCredential     = errors.New("whatssend: no credential for session")

	// Job errors.
	ErrUnknownAction = errors.New("whatssend: unknown job action")
	ErrInvalidJob    = errors.New("whatssend: invalid job")
)
