// Package storage defines the key-value contract the joke list is persisted
// through, the JSON codec every backend shares, and the in-process backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"jokeboard/internal/models"
)

var ErrNotFound = errors.New("no saved joke list")

// CorruptError reports a persisted value that cannot be used as a joke list.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt joke list under key %q: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Store is a key-value store of serialized joke lists. Load returns
// ErrNotFound when nothing is saved under key; Clear of an absent key is not
// an error. Writes are last-write-wins.
type Store interface {
	Load(ctx context.Context, key string) ([]models.Joke, error)
	Save(ctx context.Context, key string, jokes []models.Joke) error
	Clear(ctx context.Context, key string) error
}

// Encode serializes jokes the way every backend stores them.
func Encode(jokes []models.Joke) ([]byte, error) {
	if jokes == nil {
		jokes = []models.Joke{}
	}
	b, err := json.Marshal(jokes)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return b, nil
}

// Decode parses a stored list and rejects lists that break the unique,
// non-empty id invariant.
func Decode(key string, b []byte) ([]models.Joke, error) {
	var jokes []models.Joke
	if err := json.Unmarshal(b, &jokes); err != nil {
		return nil, &CorruptError{Key: key, Err: err}
	}

	seen := make(map[string]struct{}, len(jokes))
	for i, j := range jokes {
		if j.ID == "" {
			return nil, &CorruptError{Key: key, Err: fmt.Errorf("joke %d has no id", i)}
		}
		if _, dup := seen[j.ID]; dup {
			return nil, &CorruptError{Key: key, Err: fmt.Errorf("duplicate id %q", j.ID)}
		}
		seen[j.ID] = struct{}{}
	}
	return jokes, nil
}

// Collection is a Store bound to one key: the single-slot view the joke
// list controller persists through.
type Collection struct {
	store Store
	key   string
}

func Bind(store Store, key string) *Collection {
	return &Collection{store: store, key: key}
}

func (c *Collection) Key() string {
	return c.key
}

func (c *Collection) Load(ctx context.Context) ([]models.Joke, error) {
	return c.store.Load(ctx, c.key)
}

func (c *Collection) Save(ctx context.Context, jokes []models.Joke) error {
	return c.store.Save(ctx, c.key, jokes)
}

func (c *Collection) Clear(ctx context.Context) error {
	return c.store.Clear(ctx, c.key)
}
