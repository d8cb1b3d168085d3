// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package journal

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal file names.
const (
	MintSuccess     = "mint-success.log"
	MintFailed      = "mint-failed.log"
	TransferSuccess = "transfer-success.log"
	TransferSend    = "transfer-send.log"
	TransferFailed  = "transfer-failed.log"
)

// Journal appends audit records to log directory and writes run summaries to output directory.
type Journal struct {
	logDir    string
	outputDir string

	mu sync.Mutex
}

// New is a constructor for Journal, creates both directories.
func New(logDir, outputDir string) (*Journal, error) {
	for _, dir := range []string{logDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	return &Journal{logDir: logDir, outputDir: outputDir}, nil
}

// Success appends entry as single json line.
func (j *Journal) Success(name string, entry any) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return j.append(name, append(line, '\n'))
}

// Failure appends comma separated fields, e.g. label,address,reason.
func (j *Journal) Failure(name string, fields ...string) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	record := make([]string, len(fields))
	for i, field := range fields {
		record[i] = strings.Join(strings.Fields(field), " ")
	}
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return j.append(name, []byte(sb.String()))
}

// Summary writes indented json summary into output directory and returns its path.
func (j *Journal) Summary(name string, summary any) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(j.outputDir, name)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	return path, nil
}

// SucceededAddresses returns set of addresses found in success journal lines.
// Lines which could not be decoded are skipped, absent journal gives empty set.
func (j *Journal) SucceededAddresses(name string) (map[string]struct{}, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	addresses := make(map[string]struct{})

	file, err := os.Open(filepath.Join(j.logDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return addresses, nil
		}

		return nil, err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry struct {
			Address string `json:"address"`
		}
		if err = json.Unmarshal(scanner.Bytes(), &entry); err != nil || entry.Address == "" {
			continue
		}

		addresses[entry.Address] = struct{}{}
	}

	return addresses, scanner.Err()
}

func (j *Journal) append(name string, data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(j.logDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("append journal: %w", err)
	}

	return file.Close()
}

// Run identifies single batch execution.
type Run struct {
	ID        uuid.UUID `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
}

// NewRun returns run started at now.
func NewRun(now time.Time) Run {
	return Run{ID: uuid.New(), StartedAt: now}
}

// Summary describes results of the run.
type Summary[T any] struct {
	Run
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	DryRun     bool      `json:"dryRun,omitempty"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Results    T         `json:"results"`
}
