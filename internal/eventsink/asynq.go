package eventsink

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/atlas-edu/permitd/internal/permit"
	"github.com/atlas-edu/permitd/jobs"
)

// AsynqSink hands decision events to the background worker. Enqueueing is
// the only synchronous work; persistence happens out of process.
type AsynqSink struct {
	client *asynq.Client
}

// NewAsynqSink constructs a sink enqueueing through the given client.
func NewAsynqSink(client *asynq.Client) *AsynqSink {
	return &AsynqSink{client: client}
}

// Enabled reports whether the sink has a client to enqueue through.
func (s *AsynqSink) Enabled() bool {
	return s != nil && s.client != nil
}

// Emit enqueues the event for the worker. The user id is de-identified
// before the payload leaves the process.
func (s *AsynqSink) Emit(ctx context.Context, ev permit.Event) error {
	ev.UserID = DigestUID(ev.UserID)
	task, err := jobs.NewDecisionEventTask(ev)
	if err != nil {
		return fmt.Errorf("eventsink: build task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault)); err != nil {
		return fmt.Errorf("eventsink: enqueue: %w", err)
	}
	return nil
}
