package pipeline

import (
	"context"

	"github.com/pawmate-labs/benchboard/internal/schema"
)

// Notification is emitted every time a submission reaches a terminal
// state, so failures are observable even when the caller discards the
// returned Outcome.
type Notification struct {
	SubmissionID string
	RunID        string
	State        State
	Errors       []schema.FieldError
	Reason       string
}

// Notifier receives terminal-state notifications. Implementations must not
// block the pipeline; slow fan-out belongs behind the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NopNotifier discards notifications. It is the default.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
