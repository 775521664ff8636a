// Package jobs declares the background tasks processed by the worker
// binary and the Asynq server that runs them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-edu/permitd/internal/permit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDecisionEvent is the task type for persisting decision events.
	TaskTypeDecisionEvent = "permit:decision_event"
)

// NewDecisionEventTask constructs an Asynq task carrying one decision event.
func NewDecisionEventTask(ev permit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDecisionEvent, data), nil
}

// EventStore persists decision events that were already de-identified
// when they entered the queue.
type EventStore interface {
	Persist(ctx context.Context, ev permit.Event) error
}

// DecisionEventHandler persists dequeued decision events through a store.
type DecisionEventHandler struct {
	Store  EventStore
	Logger *slog.Logger
}

// Handle processes TaskTypeDecisionEvent tasks. An undecodable payload is
// dropped rather than retried; a store failure is retried by Asynq.
func (h DecisionEventHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var ev permit.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return asynq.SkipRetry
	}
	if h.Store == nil {
		return nil
	}
	if err := h.Store.Persist(ctx, ev); err != nil {
		if h.Logger != nil {
			h.Logger.Error("persist decision event", slog.Any("error", err))
		}
		return err
	}
	return nil
}
