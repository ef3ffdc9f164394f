package learn

import "github.com/zerosum-labs/learner/observability"

// Scheduler event types emitted during the training loop.
const (
	EventRunStart          observability.EventType = "learn.run.start"
	EventResume            observability.EventType = "learn.resume"
	EventBootstrapStart    observability.EventType = "learn.bootstrap.start"
	EventBootstrapComplete observability.EventType = "learn.bootstrap.complete"
	EventStep              observability.EventType = "learn.step"
	EventSaveLatest        observability.EventType = "learn.save.latest"
	EventCheckpoint        observability.EventType = "learn.save.checkpoint"
	EventWait              observability.EventType = "learn.wait"
	EventTruncate          observability.EventType = "learn.buffer.truncate"
	EventStreamError       observability.EventType = "learn.stream.error"
)
