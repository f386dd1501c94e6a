// Package corpus appends harvested records to per-collection JSONL streams.
//
// The corpus is an append-only log, not a keyed store: an update to an
// existing identifier is a new line with the newer timestamp, and consumers
// take the last line per identifier as authoritative.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	harvesterrors "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Record is one corpus line: the stable identifier, its collection, the
// last-modified timestamp, and the raw payload passed through opaquely
type Record struct {
	Key        string          `json:"key"`
	Collection string          `json:"collection"`
	Updated    time.Time       `json:"updated"`
	Payload    json.RawMessage `json:"payload"`
}

// Writer owns the physical output stream for one collection. Single-writer:
// exactly one Writer per collection exists for the duration of a run.
type Writer struct {
	collection string
	path       string
	file       *os.File
	written    int
	logger     logger.Logger
	mu         sync.Mutex
}

// NewWriter opens (or creates) the append-only corpus stream for a collection
func NewWriter(outputDir, collection string, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, harvesterrors.NewWrite(collection, fmt.Errorf("failed to create output directory: %w", err))
	}

	path := filepath.Join(outputDir, collection+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, harvesterrors.NewWrite(collection, fmt.Errorf("failed to open corpus file: %w", err))
	}

	return &Writer{
		collection: collection,
		path:       path,
		file:       file,
		logger:     log,
	}, nil
}

// Append serializes the record as one line and durably flushes it before
// returning. It never rewrites prior lines.
func (w *Writer) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return harvesterrors.NewWrite(w.collection, fmt.Errorf("failed to encode record %s: %w", rec.Key, err))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return harvesterrors.NewWrite(w.collection, fmt.Errorf("writer is closed"))
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return harvesterrors.NewWrite(w.collection, fmt.Errorf("failed to append record %s: %w", rec.Key, err))
	}
	if err := w.file.Sync(); err != nil {
		return harvesterrors.NewWrite(w.collection, fmt.Errorf("failed to sync corpus after record %s: %w", rec.Key, err))
	}

	w.written++
	return nil
}

// Written returns the number of records appended by this writer
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Path returns the corpus file path
func (w *Writer) Path() string {
	return w.path
}

// Close releases the output handle
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return harvesterrors.NewWrite(w.collection, fmt.Errorf("failed to close corpus file: %w", err))
	}
	return nil
}
