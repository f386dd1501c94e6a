// Package cursor persists per-collection harvest progress.
//
// The cursor is the sole resumability anchor. Commits are atomic
// (write-temp, fsync, rename): a crash before Commit returns leaves the
// previous cursor intact, a crash after leaves the new one. Rolling back is
// safe (the dedup index absorbs re-fetched pages); a torn cursor could skip
// records, so it must never happen.
package cursor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	harvesterrors "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Cursor is the durable progress marker for one collection
type Cursor struct {
	Collection string `json:"collection"`
	// Offset is the last confirmed pagination offset in the current pass
	Offset int `json:"offset"`
	// HighWaterMark anchors the incremental filter for the current pass.
	// It only moves when a pass completes, so a resumed pass re-issues the
	// same query and the committed offset stays meaningful.
	HighWaterMark time.Time `json:"high_water_mark"`
	// PendingHighWaterMark is the newest updated timestamp seen so far in
	// the current pass; promoted to HighWaterMark on pass completion
	PendingHighWaterMark time.Time `json:"pending_high_water_mark"`
	// PassComplete marks a finished full pass; the next run starts a new
	// incremental pass at offset 0
	PassComplete bool      `json:"pass_complete"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// Observe folds a record timestamp into the pending high-water-mark
func (c *Cursor) Observe(updated time.Time) {
	if updated.After(c.PendingHighWaterMark) {
		c.PendingHighWaterMark = updated
	}
}

// Advance moves the cursor past a committed page of the given length
func (c *Cursor) Advance(pageLen int) {
	c.Offset += pageLen
	c.PassComplete = false
}

// CompletePass resets the offset and promotes the pending high-water-mark
func (c *Cursor) CompletePass() {
	c.Offset = 0
	if c.PendingHighWaterMark.After(c.HighWaterMark) {
		c.HighWaterMark = c.PendingHighWaterMark
	}
	c.PassComplete = true
}

// BeginPass prepares a cursor for a fresh incremental pass after a completed one
func (c *Cursor) BeginPass() {
	c.Offset = 0
	c.PendingHighWaterMark = c.HighWaterMark
	c.PassComplete = false
}

// Store persists cursors, one JSON file per collection
type Store struct {
	dir    string
	logger logger.Logger
}

// NewStore creates a cursor store rooted at the given state directory
func NewStore(stateDir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: stateDir, logger: log}, nil
}

// Load reads the cursor for a collection, returning a zero-valued cursor
// when none has been committed yet
func (s *Store) Load(collection string) (*Cursor, error) {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			now := time.Now().UTC()
			return &Cursor{
				Collection: collection,
				CreatedAt:  now,
				UpdatedAt:  now,
				Version:    1,
			}, nil
		}
		return nil, harvesterrors.NewPersistence(collection, fmt.Errorf("failed to read cursor: %w", err))
	}

	var cur Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, harvesterrors.NewPersistence(collection, fmt.Errorf("failed to decode cursor: %w", err))
	}

	s.logger.InfoWithFields("cursor loaded", map[string]interface{}{
		"collection":      cur.Collection,
		"offset":          cur.Offset,
		"high_water_mark": cur.HighWaterMark,
		"pass_complete":   cur.PassComplete,
	})
	return &cur, nil
}

// Commit durably persists the cursor for a collection
func (s *Store) Commit(collection string, cur *Cursor) error {
	cur.UpdatedAt = time.Now().UTC()
	if cur.Version == 0 {
		cur.Version = 1
	}

	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to encode cursor: %w", err))
	}

	path := s.path(collection)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to create temp cursor file: %w", err))
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to write cursor: %w", err))
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to sync cursor: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to close cursor file: %w", err))
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to replace cursor file: %w", err))
	}

	s.logger.DebugWithFields("cursor committed", map[string]interface{}{
		"collection":    collection,
		"offset":        cur.Offset,
		"pass_complete": cur.PassComplete,
	})
	return nil
}

// Delete removes a collection's cursor; missing is not an error
func (s *Store) Delete(collection string) error {
	if err := os.Remove(s.path(collection)); err != nil && !os.IsNotExist(err) {
		return harvesterrors.NewPersistence(collection, fmt.Errorf("failed to delete cursor: %w", err))
	}
	return nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".cursor.json")
}
