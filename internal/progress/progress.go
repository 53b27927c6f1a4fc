// Package progress tracks batch state on disk so interrupted runs can be
// resumed without redoing finished files.
package progress

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/mwzhu/unwatermark/pkg/types"
)

// Tracker records per-file outcomes and persists them after every update.
type Tracker struct {
	mu        sync.Mutex
	file      string
	processed map[string]struct{}
	results   []types.FileResult
}

type snapshot struct {
	Timestamp string             `json:"timestamp"`
	Processed []string           `json:"processed"`
	Results   []types.FileResult `json:"results"`
}

// New creates a tracker persisting to the given file.
func New(file string) *Tracker {
	return &Tracker{
		file:      file,
		processed: make(map[string]struct{}),
	}
}

// Load reads previous progress from disk. It returns true when a progress
// file existed and parsed; a missing or corrupt file just means a fresh run.
func (t *Tracker) Load() bool {
	data, err := os.ReadFile(t.file)
	if err != nil {
		return false
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range snap.Processed {
		t.processed[p] = struct{}{}
	}
	t.results = snap.Results
	return true
}

// Record stores a file result and saves the progress file atomically.
func (t *Tracker) Record(r types.FileResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed[r.Input] = struct{}{}
	t.results = append(t.results, r)
	return t.save()
}

// save writes the snapshot via a temp file and rename. Callers hold the lock.
func (t *Tracker) save() error {
	snap := snapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Processed: make([]string, 0, len(t.processed)),
		Results:   t.results,
	}
	for p := range t.processed {
		snap.Processed = append(snap.Processed, p)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := t.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, t.file)
}

// IsProcessed checks if a path was already handled in a previous run.
func (t *Tracker) IsProcessed(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.processed[path]
	return ok
}

// Pending filters out already-processed paths.
func (t *Tracker) Pending(paths []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := t.processed[p]; !ok {
			pending = append(pending, p)
		}
	}
	return pending
}

// Results returns a copy of all recorded results, past runs included.
func (t *Tracker) Results() []types.FileResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.FileResult, len(t.results))
	copy(out, t.results)
	return out
}

// Cleanup removes the progress file after a fully completed run.
func (t *Tracker) Cleanup() {
	_ = os.Remove(t.file)
}
