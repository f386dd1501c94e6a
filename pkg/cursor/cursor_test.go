package cursor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"jiraharvest/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestLoadReturnsZeroCursorWhenAbsent(t *testing.T) {
	store := newTestStore(t)

	cur, err := store.Load("HADOOP")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cur.Collection != "HADOOP" {
		t.Errorf("Expected collection HADOOP, got %q", cur.Collection)
	}
	if cur.Offset != 0 || !cur.HighWaterMark.IsZero() || cur.PassComplete {
		t.Errorf("Expected zero cursor, got %+v", cur)
	}
	if cur.Version != 1 {
		t.Errorf("Expected version 1, got %d", cur.Version)
	}
}

func TestCommitLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)

	hwm := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	pending := hwm.Add(2 * time.Hour)
	cur := &Cursor{
		Collection:           "HADOOP",
		Offset:               150,
		HighWaterMark:        hwm,
		PendingHighWaterMark: pending,
		Version:              1,
	}
	if err := store.Commit("HADOOP", cur); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	loaded, err := store.Load("HADOOP")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Offset != 150 {
		t.Errorf("Expected offset 150, got %d", loaded.Offset)
	}
	if !loaded.HighWaterMark.Equal(hwm) {
		t.Errorf("Expected high-water-mark %v, got %v", hwm, loaded.HighWaterMark)
	}
	if !loaded.PendingHighWaterMark.Equal(pending) {
		t.Errorf("Expected pending mark %v, got %v", pending, loaded.PendingHighWaterMark)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set on commit")
	}
}

func TestCommitLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Commit("SPARK", &Cursor{Collection: "SPARK", Offset: 50}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("Temp file %q left behind after commit", entry.Name())
		}
	}
}

func TestCommitOverwritesPrevious(t *testing.T) {
	store := newTestStore(t)

	if err := store.Commit("KAFKA", &Cursor{Collection: "KAFKA", Offset: 50}); err != nil {
		t.Fatalf("First commit failed: %v", err)
	}
	if err := store.Commit("KAFKA", &Cursor{Collection: "KAFKA", Offset: 100}); err != nil {
		t.Fatalf("Second commit failed: %v", err)
	}

	loaded, err := store.Load("KAFKA")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Offset != 100 {
		t.Errorf("Expected offset 100 after overwrite, got %d", loaded.Offset)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Commit("HADOOP", &Cursor{Collection: "HADOOP", Offset: 10}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := store.Delete("HADOOP"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	cur, err := store.Load("HADOOP")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cur.Offset != 0 {
		t.Errorf("Expected zero cursor after delete, got offset %d", cur.Offset)
	}

	// Deleting a missing cursor is not an error
	if err := store.Delete("HADOOP"); err != nil {
		t.Errorf("Delete of missing cursor failed: %v", err)
	}
}

func TestObserveKeepsMaximum(t *testing.T) {
	cur := &Cursor{Collection: "HADOOP"}

	t1 := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	cur.Observe(t2)
	cur.Observe(t1) // older, must not regress
	if !cur.PendingHighWaterMark.Equal(t2) {
		t.Errorf("Expected pending mark %v, got %v", t2, cur.PendingHighWaterMark)
	}
}

func TestAdvance(t *testing.T) {
	cur := &Cursor{Collection: "HADOOP", Offset: 50, PassComplete: true}
	cur.Advance(50)
	if cur.Offset != 100 {
		t.Errorf("Expected offset 100, got %d", cur.Offset)
	}
	if cur.PassComplete {
		t.Error("Expected PassComplete cleared by Advance")
	}
}

func TestCompletePassPromotesPendingMark(t *testing.T) {
	hwm := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pending := hwm.AddDate(0, 0, 14)
	cur := &Cursor{
		Collection:           "HADOOP",
		Offset:               120,
		HighWaterMark:        hwm,
		PendingHighWaterMark: pending,
	}

	cur.CompletePass()
	if cur.Offset != 0 {
		t.Errorf("Expected offset reset, got %d", cur.Offset)
	}
	if !cur.HighWaterMark.Equal(pending) {
		t.Errorf("Expected high-water-mark promoted to %v, got %v", pending, cur.HighWaterMark)
	}
	if !cur.PassComplete {
		t.Error("Expected PassComplete set")
	}
}

func TestCompletePassNeverRegressesMark(t *testing.T) {
	hwm := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cur := &Cursor{
		Collection:           "HADOOP",
		HighWaterMark:        hwm,
		PendingHighWaterMark: time.Time{}, // empty pass saw nothing
	}

	cur.CompletePass()
	if !cur.HighWaterMark.Equal(hwm) {
		t.Errorf("Expected high-water-mark unchanged at %v, got %v", hwm, cur.HighWaterMark)
	}
}

func TestBeginPass(t *testing.T) {
	hwm := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cur := &Cursor{
		Collection:           "HADOOP",
		Offset:               0,
		HighWaterMark:        hwm,
		PendingHighWaterMark: hwm.Add(-time.Hour),
		PassComplete:         true,
	}

	cur.BeginPass()
	if cur.Offset != 0 || cur.PassComplete {
		t.Errorf("Expected fresh pass state, got %+v", cur)
	}
	if !cur.PendingHighWaterMark.Equal(hwm) {
		t.Errorf("Expected pending mark seeded from %v, got %v", hwm, cur.PendingHighWaterMark)
	}
}
