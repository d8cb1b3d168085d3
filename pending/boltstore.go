// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var bucketRecords = []byte("pending_records")

// BoltStore is a Repository over bbolt database.
type BoltStore struct {
	db  *bbolt.DB
	log logrus.FieldLogger
}

var _ Repository = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string, log logrus.FieldLogger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("pending: create directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("pending: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pending: create bucket: %w", err)
	}

	return &BoltStore{db: db, log: log}, nil
}

// Load returns persisted records, undecodable entries are skipped with warning.
func (s *BoltStore) Load(ctx context.Context) ([]Record, error) {
	return s.List(ctx)
}

// Upsert stores record by ordinal id.
func (s *BoltStore) Upsert(_ context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Put([]byte(record.OrdinalID), data)
	})
}

// Remove deletes record by ordinal id, missing id is a no-op.
func (s *BoltStore) Remove(_ context.Context, ordinalID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Delete([]byte(ordinalID))
	})
}

// List returns records ordered by creation time.
func (s *BoltStore) List(_ context.Context) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				s.log.WithError(errors.Join(ErrStoreCorrupted, err)).WithField("ordinalId", string(k)).
					Warn("skipping undecodable pending record")
				return nil
			}

			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return records, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
