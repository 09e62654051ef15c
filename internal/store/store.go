// Package store is the keyed entity store every handler writes through.
// Entities are JSON documents addressed by (collection, key); writes are
// always whole-record overwrites, never field-level patches.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// KV is the backend contract. Implementations must make Put a full,
// idempotent overwrite keyed by (collection, key).
type KV interface {
	// Get returns the stored document and whether it exists.
	Get(ctx context.Context, collection, key string) ([]byte, bool, error)
	// Put stores the document, replacing any previous value.
	Put(ctx context.Context, collection, key string, value []byte) error
	// Initialize prepares the backend (creates tables, etc.).
	Initialize(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Collection is a typed view over one named collection in a KV backend.
type Collection[T any] struct {
	name string
	kv   KV
}

// NewCollection binds a typed collection to a backend.
func NewCollection[T any](kv KV, name string) *Collection[T] {
	return &Collection[T]{name: name, kv: kv}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get loads the record for key. The second return is false if it does not
// exist.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, bool, error) {
	data, ok, err := c.kv.Get(ctx, c.name, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", c.name, key, err)
	}
	if !ok {
		return nil, false, nil
	}
	value := new(T)
	if err := json.Unmarshal(data, value); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s/%s: %w", c.name, key, err)
	}
	return value, true, nil
}

// Has reports whether a record exists without decoding it.
func (c *Collection[T]) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.kv.Get(ctx, c.name, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", c.name, key, err)
	}
	return ok, nil
}

// GetOrCreate returns the existing record, or constructs a zero-valued
// default, applies init (which may be nil), persists it, and returns it.
// Persisting before returning means no caller can ever observe a
// half-initialized record.
func (c *Collection[T]) GetOrCreate(ctx context.Context, key string, init func(*T)) (*T, error) {
	value, ok, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return value, nil
	}
	value = new(T)
	if init != nil {
		init(value)
	}
	if err := c.Put(ctx, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Put overwrites the record for key with value.
func (c *Collection[T]) Put(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", c.name, key, err)
	}
	if err := c.kv.Put(ctx, c.name, key, data); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", c.name, key, err)
	}
	return nil
}
