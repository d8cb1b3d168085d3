// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pending

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrStoreCorrupted defines that persisted records could not be decoded.
var ErrStoreCorrupted = errors.New("pending store corrupted")

// Repository stores prepared transfer records keyed by ordinal id.
// Every mutation is persisted before it returns.
type Repository interface {
	// Load reads persisted records, corrupted storage is loaded as empty.
	Load(ctx context.Context) ([]Record, error)
	// Upsert inserts record or replaces the one with the same ordinal id.
	Upsert(ctx context.Context, record Record) error
	// Remove deletes record by ordinal id, missing id is a no-op.
	Remove(ctx context.Context, ordinalID string) error
	// List returns records in insertion order.
	List(ctx context.Context) ([]Record, error)
	// Close releases underlying storage.
	Close() error
}

// Backend defines pending store implementation.
type Backend string

const (
	// BackendJSON defines JSON array file store.
	BackendJSON Backend = "json"
	// BackendBolt defines bbolt database store.
	BackendBolt Backend = "bolt"
)

// Open returns repository of the backend at path.
func Open(backend Backend, path string, log logrus.FieldLogger) (Repository, error) {
	switch backend {
	case BackendJSON, "":
		return NewFileStore(path, log), nil
	case BackendBolt:
		return OpenBoltStore(path, log)
	default:
		return nil, fmt.Errorf("unknown pending backend %q", backend)
	}
}
