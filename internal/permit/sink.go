package permit

import (
	"context"
	"time"
)

// Event is the de-identifiable record of one authorization decision. It is
// produced only while decision logging is active and never stored by the
// engine itself.
type Event struct {
	Decision    Decision    `json:"decision"`
	Reason      Reason      `json:"reason"`
	Action      Action      `json:"action"`
	Resource    Resource    `json:"resource"`
	SubResource SubResource `json:"subResource,omitempty"`
	ResourceKey string      `json:"resourceKey"`
	SiteID      string      `json:"siteId"`
	UserID      string      `json:"userId"`
	Timestamp   time.Time   `json:"timestamp"`
	Environment string      `json:"environment"`
}

// DecisionSink receives decision events. Emit is fire-and-forget from the
// engine's point of view: implementations may do asynchronous work, and any
// returned error is logged, never surfaced to the check caller.
type DecisionSink interface {
	Enabled() bool
	Emit(ctx context.Context, ev Event) error
}

// NoopSink is the default sink: disabled, drops everything.
type NoopSink struct{}

// Enabled always reports false.
func (NoopSink) Enabled() bool { return false }

// Emit discards the event.
func (NoopSink) Emit(ctx context.Context, ev Event) error { return nil }
