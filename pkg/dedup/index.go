// Package dedup tracks which record identifiers have already been written to
// the corpus, keyed by their last-written updated timestamp. The index is
// rebuilt at startup from a compact snapshot kept alongside the cursor, never
// by rescanning the corpus itself.
package dedup

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

// Index is the per-collection identifier to last-written-timestamp mapping
type Index struct {
	collection string
	path       string
	entries    map[string]time.Time
	logger     logger.Logger
	mu         sync.RWMutex
}

// snapshot is the persisted form of the index
type snapshot struct {
	Collection string               `json:"collection"`
	Entries    map[string]time.Time `json:"entries"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Version    int                  `json:"version"`
}

// Open loads the dedup index for a collection, starting empty when no
// snapshot exists yet
func Open(stateDir, collection string, log logger.Logger) (*Index, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, harvesterrors.NewPersistence(collection, fmt.Errorf("failed to create state directory: %w", err))
	}

	idx := &Index{
		collection: collection,
		path:       filepath.Join(stateDir, collection+".seen.json"),
		entries:    make(map[string]time.Time),
		logger:     log,
	}

	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, harvesterrors.NewPersistence(collection, fmt.Errorf("failed to read dedup snapshot: %w", err))
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, harvesterrors.NewPersistence(collection, fmt.Errorf("failed to decode dedup snapshot: %w", err))
	}
	if snap.Entries != nil {
		idx.entries = snap.Entries
	}

	log.InfoWithFields("dedup index loaded", map[string]interface{}{
		"collection": collection,
		"entries":    len(idx.entries),
	})
	return idx, nil
}

// ShouldEmit reports whether a record belongs in the corpus: its key is
// unseen, or its updated timestamp is strictly newer than the one last
// written for that key
func (idx *Index) ShouldEmit(key string, updated time.Time) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prev, seen := idx.entries[key]
	if !seen {
		return true
	}
	return updated.After(prev)
}

// MarkEmitted records that a record was written to the corpus
func (idx *Index) MarkEmitted(key string, updated time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = updated
}

// Len returns the number of tracked identifiers
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Save atomically persists the index snapshot
func (idx *Index) Save() error {
	idx.mu.RLock()
	snap := snapshot{
		Collection: idx.collection,
		Entries:    make(map[string]time.Time, len(idx.entries)),
		UpdatedAt:  time.Now().UTC(),
		Version:    1,
	}
	for k, v := range idx.entries {
		snap.Entries[k] = v
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(&snap)
	if err != nil {
		return harvesterrors.NewPersistence(idx.collection, fmt.Errorf("failed to encode dedup snapshot: %w", err))
	}

	tempPath := idx.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return harvesterrors.NewPersistence(idx.collection, fmt.Errorf("failed to create temp snapshot file: %w", err))
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(idx.collection, fmt.Errorf("failed to write dedup snapshot: %w", err))
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(idx.collection, fmt.Errorf("failed to sync dedup snapshot: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(idx.collection, fmt.Errorf("failed to close snapshot file: %w", err))
	}
	if err := os.Rename(tempPath, idx.path); err != nil {
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(idx.collection, fmt.Errorf("failed to replace dedup snapshot: %w", err))
	}

	idx.logger.DebugWithFields("dedup snapshot saved", map[string]interface{}{
		"collection": idx.collection,
		"entries":    len(snap.Entries),
	})
	return nil
}
