// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pending

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
)

// FileStore is a Repository persisting records as JSON array file.
// It assumes single process access, file is read once on Load and rewritten on every mutation.
// Entries that could not be loaded are written back untouched.
type FileStore struct {
	path     string
	log      logrus.FieldLogger
	records  []Record
	unloaded []unloadedEntry
}

// unloadedEntry is a raw array element that failed to decode or validate.
type unloadedEntry struct {
	ordinalID string
	raw       json.RawMessage
}

var _ Repository = (*FileStore)(nil)

// NewFileStore is a constructor for FileStore.
func NewFileStore(path string, log logrus.FieldLogger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Load reads records file, absent or empty file is loaded as empty set.
// Malformed file is renamed aside to <path>.corrupt-<unix millis> and loaded as empty set.
func (s *FileStore) Load(_ context.Context) ([]Record, error) {
	s.records, s.unloaded = nil, nil

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read pending file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err = json.Unmarshal(data, &entries); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixMilli())
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return nil, fmt.Errorf("move malformed pending file aside: %w", errors.Join(ErrStoreCorrupted, err, renameErr))
		}

		s.log.WithError(errors.Join(ErrStoreCorrupted, err)).WithField("path", s.path).WithField("movedTo", aside).
			Warn("pending file is malformed, starting with empty set")
		return nil, nil
	}

	for _, raw := range entries {
		var record Record
		if err = json.Unmarshal(raw, &record); err == nil {
			err = record.Validate()
		}
		if err != nil {
			var key struct {
				OrdinalID string `json:"ordinalId"`
			}
			_ = json.Unmarshal(raw, &key)

			s.log.WithError(err).WithField("ordinalId", key.OrdinalID).Warn("pending record is not loaded, keeping it in file")
			s.unloaded = append(s.unloaded, unloadedEntry{ordinalID: key.OrdinalID, raw: raw})
			continue
		}

		s.records = upsert(s.records, record)
	}

	return slices.Clone(s.records), nil
}

// Upsert inserts record or replaces the one with the same ordinal id and persists the file.
func (s *FileStore) Upsert(_ context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.records = upsert(s.records, record)
	s.unloaded = slices.DeleteFunc(s.unloaded, func(e unloadedEntry) bool { return e.ordinalID == record.OrdinalID })

	return s.persist()
}

// Remove deletes record by ordinal id and persists the file, missing id is a no-op.
func (s *FileStore) Remove(_ context.Context, ordinalID string) error {
	idx := slices.IndexFunc(s.records, func(r Record) bool { return r.OrdinalID == ordinalID })
	if idx == -1 {
		return nil
	}

	s.records = slices.Delete(s.records, idx, idx+1)

	return s.persist()
}

// List returns records in insertion order.
func (s *FileStore) List(_ context.Context) ([]Record, error) {
	return slices.Clone(s.records), nil
}

// Close is a no-op, file is persisted on every mutation.
func (s *FileStore) Close() error {
	return nil
}

// persist atomically rewrites records file.
func (s *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create pending dir: %w", err)
	}

	entries := make([]json.RawMessage, 0, len(s.records)+len(s.unloaded))
	for _, record := range s.records {
		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}

		entries = append(entries, raw)
	}
	for _, entry := range s.unloaded {
		entries = append(entries, entry.raw)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}

	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace pending file: %w", err)
	}

	return nil
}

// upsert replaces record with the same ordinal id in place or appends it.
func upsert(records []Record, record Record) []Record {
	idx := slices.IndexFunc(records, func(r Record) bool { return r.OrdinalID == record.OrdinalID })
	if idx == -1 {
		return append(records, record)
	}

	records[idx] = record

	return records
}
