package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mwzhu/unwatermark"
	"github.com/mwzhu/unwatermark/api"
	"github.com/mwzhu/unwatermark/internal/config"
	"github.com/mwzhu/unwatermark/internal/utils"
	"github.com/mwzhu/unwatermark/pkg/batch"
)

const (
	// ServerReadTimeout is the HTTP server read timeout
	ServerReadTimeout = 15 * time.Second

	// ServerWriteTimeout is the HTTP server write timeout
	ServerWriteTimeout = 15 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout = 10 * time.Second
)

func main() {
	var in, outDir, cfgPath, format, addr, progressFile string
	var quality, workers int
	var threshold float64
	var lossless, skipUndetected, detectOnly, debug, resume, serve, verbose bool

	flag.StringVar(&in, "in", "", "input image directory, file path or URL")
	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&cfgPath, "config", "", "config file (json or yaml)")

	flag.StringVar(&format, "ext", "", "output format: png|jpg|webp (default png)")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")

	flag.IntVar(&workers, "workers", 0, "parallel workers for batch mode (0 = all CPUs)")
	flag.Float64Var(&threshold, "threshold", -1, "detection confidence threshold (0-100)")
	flag.BoolVar(&skipUndetected, "skip-undetected", false, "leave files below the threshold untouched")
	flag.BoolVar(&detectOnly, "detect", false, "score files without writing output")
	flag.BoolVar(&debug, "debug", false, "also write images with the overlay region marked")

	flag.BoolVar(&resume, "resume", false, "resume from previous progress")
	flag.StringVar(&progressFile, "progress", "", "progress file for resume capability")

	flag.BoolVar(&serve, "serve", false, "run the HTTP API instead of batch mode")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (serve mode)")

	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg := loadConfig(cfgPath)
	mergeFlags(cfg, outDir, format, addr, progressFile, quality, workers, threshold,
		lossless, skipUndetected, resume, debug)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	engine, err := unwatermark.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load reference masks")
	}

	if serve {
		runServer(engine, cfg)
		return
	}

	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in <dir|file|URL> [-out outdir] [-ext png|jpg|webp] [-workers N] [-detect] [-resume] | -serve\n",
			filepath.Base(os.Args[0]))
		os.Exit(1)
	}

	if utils.DirExists(in) {
		runBatch(engine, cfg, in, detectOnly)
		return
	}
	runSingle(engine, cfg, in)
}

// loadConfig reads the config file when given, falling back to defaults.
func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("config", path).Msg("failed to load config")
	}
	return cfg
}

// mergeFlags overrides config values with explicitly set flags.
func mergeFlags(cfg *config.Config, outDir, format, addr, progressFile string,
	quality, workers int, threshold float64, lossless, skipUndetected, resume, debug bool) {
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if format != "" {
		cfg.Output.Format = strings.ToLower(format)
	}
	if quality > 0 {
		cfg.Output.Quality = quality
	}
	if lossless {
		cfg.Output.Lossless = true
	}
	if workers > 0 {
		cfg.Batch.Workers = workers
	}
	if threshold >= 0 {
		cfg.Detection.Threshold = threshold
	}
	if skipUndetected {
		cfg.Detection.SkipUndetected = true
	}
	if resume {
		cfg.Batch.Resume = true
	}
	if debug {
		cfg.Batch.DebugOverlay = true
	}
	if progressFile != "" {
		cfg.Batch.ProgressFile = progressFile
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
}

func runBatch(engine *unwatermark.Engine, cfg *config.Config, inDir string, detectOnly bool) {
	runner := batch.NewRunner(engine, batch.Options{
		InputDir:       inDir,
		OutputDir:      cfg.Output.Dir,
		Prefix:         cfg.Output.Prefix,
		Format:         cfg.Output.Format,
		Quality:        cfg.Output.Quality,
		Lossless:       cfg.Output.Lossless,
		Workers:        cfg.Batch.Workers,
		Threshold:      cfg.Detection.Threshold,
		SkipUndetected: cfg.Detection.SkipUndetected,
		DetectOnly:     detectOnly,
		DebugOverlay:   cfg.Batch.DebugOverlay,
		Resume:         cfg.Batch.Resume,
		ProgressFile:   cfg.Batch.ProgressFile,
		SummaryFile:    "results.json",
	}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("batch run failed")
	}
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("interrupted, progress saved")
	}

	log.Info().
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("batch complete")
}

func runSingle(engine *unwatermark.Engine, cfg *config.Config, in string) {
	img, err := engine.Processor().LoadImageSmart(in)
	if err != nil {
		log.Fatal().Err(err).Str("file", in).Msg("failed to load image")
	}

	cleaned, det, err := engine.Remove(img)
	if err != nil {
		log.Fatal().Err(err).Str("file", in).Msg("failed to remove overlay")
	}

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}
	outPath := utils.OutputFilename(in, cfg.Output.Dir, cfg.Output.Prefix, cfg.Output.Format)
	if err := engine.Processor().SaveImage(cleaned, outPath, cfg.Output.Format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
		log.Fatal().Err(err).Str("file", outPath).Msg("failed to save image")
	}

	log.Info().
		Str("output", outPath).
		Float64("confidence", det.Confidence).
		Stringer("region", det.Region).
		Str("size_class", det.Class.String()).
		Msg("removed overlay")
}

func runServer(engine *unwatermark.Engine, cfg *config.Config) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api.SetupRoutes(r, engine, &api.Config{
		MaxFileSize: cfg.Server.MaxFileSize,
		Threshold:   cfg.Detection.Threshold,
	}, log.Logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  ServerReadTimeout,
		WriteTimeout: ServerWriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("serving HTTP API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
