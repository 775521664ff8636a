// Package docstore holds the host-side copy of the permission document.
// The evaluator core never fetches anything itself; the host reads the
// document from here at boot or on reload and hands it to the engine as an
// already-resolved value.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates no document has been published yet.
var ErrNotFound = errors.New("docstore: document not found")

// Store persists the permission document as a JSON blob under one key.
type Store struct {
	client *redis.Client
	key    string
}

// New constructs a Store writing under the given key.
func New(client *redis.Client, key string) *Store {
	return &Store{client: client, key: key}
}

// Get returns the raw document bytes, or ErrNotFound.
func (s *Store) Get(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get: %w", err)
	}
	return data, nil
}

// Put stores the raw document bytes. The document has no expiry: it stays
// current until the next publish overwrites it.
func (s *Store) Put(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("docstore: put: %w", err)
	}
	return nil
}
