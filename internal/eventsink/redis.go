// Package eventsink provides concrete decision-event sinks: a Redis store
// with per-event TTL and an Asynq enqueuer for asynchronous delivery. Both
// strip volatile identifying fields before anything leaves the process.
package eventsink

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/atlas-edu/permitd/internal/permit"
)

const keyPrefix = "permit:decision:"

// RedisSink persists de-identified decision events with a TTL, so the
// audit trail bounds its own storage.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink constructs a sink writing events that expire after ttl.
func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

// Enabled reports whether the sink has a client to write through.
func (s *RedisSink) Enabled() bool {
	return s != nil && s.client != nil
}

// Emit stores the event under a fresh key. The user id is replaced by its
// digest before serialization; the raw id never reaches the store.
func (s *RedisSink) Emit(ctx context.Context, ev permit.Event) error {
	ev.UserID = DigestUID(ev.UserID)
	return s.Persist(ctx, ev)
}

// Persist stores an already de-identified event as-is. The worker uses
// this for events that were digested when they entered the queue.
func (s *RedisSink) Persist(ctx context.Context, ev permit.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventsink: marshal: %w", err)
	}
	key := keyPrefix + uuid.NewString()
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("eventsink: set: %w", err)
	}
	return nil
}

// DigestUID de-identifies a user id for storage. Stable per user so events
// remain correlatable without exposing the id itself.
func DigestUID(uid string) string {
	if uid == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:8])
}
