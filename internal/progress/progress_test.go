package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mwzhu/unwatermark/pkg/types"
)

func TestRecordAndLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "progress.json")

	tracker := New(file)
	if tracker.Load() {
		t.Error("Load should report false with no progress file")
	}

	err := tracker.Record(types.FileResult{Input: "a.png", Status: types.StatusSuccess, Output: "out/unwatermarked_a.png"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := tracker.Record(types.FileResult{Input: "b.png", Status: types.StatusFailed, Error: "decode: bad data"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	fresh := New(file)
	if !fresh.Load() {
		t.Fatal("Load should succeed after records were saved")
	}
	if !fresh.IsProcessed("a.png") || !fresh.IsProcessed("b.png") {
		t.Error("Loaded tracker lost processed entries")
	}
	if fresh.IsProcessed("c.png") {
		t.Error("Unknown path reported as processed")
	}

	results := fresh.Results()
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
}

func TestPending(t *testing.T) {
	tracker := New(filepath.Join(t.TempDir(), "progress.json"))
	if err := tracker.Record(types.FileResult{Input: "b.png", Status: types.StatusSuccess}); err != nil {
		t.Fatal(err)
	}

	pending := tracker.Pending([]string{"a.png", "b.png", "c.png"})
	if len(pending) != 2 || pending[0] != "a.png" || pending[1] != "c.png" {
		t.Errorf("Expected [a.png c.png], got %v", pending)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "progress.json")
	tracker := New(file)
	if err := os.WriteFile(file, []byte("{corrupt"), 0644); err != nil {
		t.Fatal(err)
	}
	if tracker.Load() {
		t.Error("Corrupt progress file should load as a fresh run")
	}
}

func TestCleanup(t *testing.T) {
	file := filepath.Join(t.TempDir(), "progress.json")
	tracker := New(file)
	if err := tracker.Record(types.FileResult{Input: "a.png", Status: types.StatusSuccess}); err != nil {
		t.Fatal(err)
	}

	tracker.Cleanup()

	fresh := New(file)
	if fresh.Load() {
		t.Error("Progress file should be gone after Cleanup")
	}
}
