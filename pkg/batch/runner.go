// Package batch runs the removal pipeline across a directory of images with
// a worker pool, per-file result records and a resumable progress file.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwzhu/unwatermark"
	"github.com/mwzhu/unwatermark/internal/progress"
	"github.com/mwzhu/unwatermark/internal/utils"
	"github.com/mwzhu/unwatermark/pkg/locate"
	"github.com/mwzhu/unwatermark/pkg/restore"
	"github.com/mwzhu/unwatermark/pkg/types"
)

// Options controls a batch run.
type Options struct {
	InputDir  string
	OutputDir string
	Prefix    string
	Format    string
	Quality   int
	Lossless  bool

	// Workers is the parallel worker count; 0 means runtime.NumCPU().
	Workers int

	// Threshold is the detection confidence below which a file is reported
	// as undetected; SkipUndetected additionally leaves such files untouched.
	Threshold      float64
	SkipUndetected bool

	// DetectOnly scores files without writing any output.
	DetectOnly bool

	// DebugOverlay additionally writes a copy with the overlay region marked.
	DebugOverlay bool

	// Resume skips files recorded in the progress file from a previous run.
	Resume       bool
	ProgressFile string

	// SummaryFile, when set, receives the run summary as JSON inside the
	// output directory.
	SummaryFile string
}

// Runner sequences decode, locate, detect, restore and encode per file.
type Runner struct {
	engine *unwatermark.Engine
	opts   Options
	log    zerolog.Logger
}

// NewRunner creates a batch runner around an engine.
func NewRunner(engine *unwatermark.Engine, opts Options, log zerolog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	if opts.Prefix == "" {
		opts.Prefix = "unwatermarked_"
	}
	if opts.ProgressFile == "" {
		opts.ProgressFile = filepath.Join(opts.OutputDir, ".unwatermark_progress.json")
	}
	return &Runner{engine: engine, opts: opts, log: log}
}

// Run processes every image file in the input directory. One bad file never
// blocks the rest: failures are captured per file and counted in the summary.
// A canceled context stops the run after the in-flight files drain; progress
// already made stays on disk for -resume.
func (r *Runner) Run(ctx context.Context) (types.Summary, error) {
	files, err := utils.ListImageFiles(r.opts.InputDir)
	if err != nil {
		return types.Summary{}, fmt.Errorf("list input directory: %w", err)
	}
	if len(files) == 0 {
		return types.Summary{}, fmt.Errorf("no image files found in %s", r.opts.InputDir)
	}

	// Detect-only runs write no images but still place the summary and
	// progress files in the output directory.
	if err := utils.EnsureDir(r.opts.OutputDir); err != nil {
		return types.Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	tracker := progress.New(r.opts.ProgressFile)
	pending := files
	if r.opts.Resume && tracker.Load() {
		pending = tracker.Pending(files)
		r.log.Info().
			Int("total", len(files)).
			Int("pending", len(pending)).
			Msg("resuming previous run")
	}

	jobs := make(chan string)
	results := make(chan types.FileResult)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- r.processFile(path)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range pending {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var summary types.Summary
	for res := range results {
		summary.Add(res)
		if err := tracker.Record(res); err != nil {
			r.log.Warn().Err(err).Msg("failed to save progress")
		}
		r.logResult(res)
	}
	summary.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	complete := ctx.Err() == nil && summary.Total == len(pending)
	if complete {
		tracker.Cleanup()
	}

	if r.opts.SummaryFile != "" {
		if err := r.writeSummary(tracker, summary); err != nil {
			r.log.Warn().Err(err).Msg("failed to write summary file")
		}
	}

	return summary, ctx.Err()
}

// processFile runs the full pipeline for one input file.
func (r *Runner) processFile(path string) types.FileResult {
	start := time.Now()
	result := types.FileResult{Input: path, Status: types.StatusSuccess}
	defer func() {
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	img, err := r.engine.Processor().LoadImage(path)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("decode: %v", err)
		return result
	}

	buf := r.engine.Processor().ToNRGBA(img)
	det, err := r.engine.DetectBuffer(buf)
	if err != nil {
		if errors.Is(err, locate.ErrTooSmall) {
			result.Status = types.StatusSkipped
		} else {
			result.Status = types.StatusFailed
		}
		result.Error = err.Error()
		return result
	}
	result.Confidence = det.Confidence
	result.Region = det.Region
	result.Class = det.Class.String()

	if r.opts.SkipUndetected && det.Confidence < r.opts.Threshold {
		result.Status = types.StatusSkipped
		result.Error = fmt.Sprintf("confidence %.0f%% below threshold %.0f%%", det.Confidence, r.opts.Threshold)
		return result
	}
	if r.opts.DetectOnly {
		if det.Confidence < r.opts.Threshold {
			result.Status = types.StatusSkipped
		}
		return result
	}

	restore.Apply(buf, det.Region, r.engine.Maps().ForClass(det.Class))

	outPath := utils.OutputFilename(path, r.opts.OutputDir, r.opts.Prefix, r.opts.Format)
	if err := r.engine.Processor().SaveImage(buf, outPath, r.opts.Format, r.opts.Quality, r.opts.Lossless); err != nil {
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("encode: %v", err)
		return result
	}
	result.Output = outPath

	if r.opts.DebugOverlay {
		overlay := r.engine.Processor().DrawRegionOverlay(img, det.Region.X, det.Region.Y, det.Region.W, det.Region.H)
		dbgPath := utils.OutputFilename(path, r.opts.OutputDir, "debug_", "png")
		if err := r.engine.Processor().SaveImage(overlay, dbgPath, "png", 100, false); err != nil {
			r.log.Warn().Str("file", dbgPath).Err(err).Msg("debug overlay save failed")
		}
	}

	return result
}

func (r *Runner) logResult(res types.FileResult) {
	ev := r.log.Info()
	switch res.Status {
	case types.StatusFailed:
		ev = r.log.Error()
	case types.StatusSkipped:
		ev = r.log.Warn()
	}
	ev.Str("file", filepath.Base(res.Input)).
		Str("status", string(res.Status)).
		Float64("confidence", res.Confidence).
		Int64("duration_ms", res.DurationMS)
	if res.Output != "" {
		ev = ev.Str("output", res.Output)
	}
	if res.Error != "" {
		ev = ev.Str("reason", res.Error)
	}
	ev.Msg("processed")
}

// writeSummary persists the run summary, including results carried over from
// resumed runs, as indented JSON in the output directory.
func (r *Runner) writeSummary(tracker *progress.Tracker, summary types.Summary) error {
	full := types.Summary{GeneratedAt: summary.GeneratedAt}
	for _, res := range tracker.Results() {
		full.Add(res)
	}

	data, err := json.MarshalIndent(full, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.opts.OutputDir, r.opts.SummaryFile), data, 0644)
}
