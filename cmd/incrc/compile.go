package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"incrc/internal/classfile"
	"incrc/internal/config"
	"incrc/internal/driver"
	"incrc/internal/manifest"
	"incrc/internal/paths"
	"incrc/internal/persist"
	"incrc/internal/stamp"
	"incrc/internal/toolchain"
	"incrc/internal/watcher"
)

var (
	compileWatch         bool
	compileWatchInterval time.Duration
	compileManifest      string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Run the incremental compile driver over the declared source set",
	Long: `compile loads sources.toml, runs the invalidation-aware driver loop
to a fixed point, and persists the resulting Analysis so the next
invocation starts from where this one left off.

Examples:
  incrc compile                 # one compile, exit
  incrc compile --watch         # recompile on every source change`,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "Watch for source changes and recompile")
	compileCmd.Flags().DurationVar(&compileWatchInterval, "watch-interval", 500*time.Millisecond,
		"Watch mode polling interval (min 100ms, max 30s)")
	compileCmd.Flags().StringVar(&compileManifest, "manifest", manifest.SourcesManifestFile,
		"Path to the source manifest, relative to the repo root")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	mf, err := manifest.LoadFrom(repoRoot, compileManifest)
	if err != nil {
		return err
	}

	store, err := persist.Open(paths.JoinRepoPath(repoRoot, cfg.AnalysisDB), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	stagingDir := paths.JoinRepoPath(repoRoot, cfg.Staging)
	if recovered, err := classfile.RecoverStaging(stagingDir); err != nil {
		logger.Warn("staging recovery failed", map[string]interface{}{"error": err.Error()})
	} else if len(recovered) > 0 {
		logger.Info("recovered crashed compile run(s)", map[string]interface{}{"count": len(recovered)})
	}

	outputDir := mf.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(repoRoot, outputDir)
	}

	compile := toolchain.NewReference(repoRoot, outputDir).Compile

	runOnce := func(sources map[string]bool) error {
		start := time.Now()

		previous, err := loadPreviousOrEmpty(store)
		if err != nil {
			return err
		}

		// A fresh Driver per run: the stamp oracle's cache is per-run, so
		// a watch-triggered recompile must re-observe every source instead
		// of trusting stamps memoized by an earlier run.
		d := &driver.Driver{
			StagingDir: stagingDir,
			Oracle:     stamp.NewAt(repoRoot, cfg.Stamp.UseContentHash),
			Lookup:     emptyLookup{},
			Logger:     logger,
			Options:    driverOptionsFrom(cfg.Driver),
			Compile:    compile,
		}

		changed, result, err := d.Run(context.Background(), previous, sources)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Println("up to date")
			return nil
		}
		if err := store.Save(result, time.Now().UnixNano()); err != nil {
			return err
		}
		if err := store.RecordRun(persist.RunRecord{
			SourcesCompiled: len(result.Sources()),
			DurationMs:      time.Since(start).Milliseconds(),
			RecordedAtNanos: time.Now().UnixNano(),
		}); err != nil {
			logger.Warn("failed to record run metrics", map[string]interface{}{"error": err.Error()})
		}
		fmt.Printf("compiled %d source(s)\n", len(result.Sources()))
		return nil
	}

	if err := runOnce(mf.Sources); err != nil {
		return err
	}

	if !compileWatch {
		return nil
	}
	return runWatchLoop(repoRoot, cfg, mf, runOnce)
}

func runWatchLoop(repoRoot string, cfg *config.Config, mf *manifest.Manifest, runOnce func(map[string]bool) error) error {
	logger := newLogger(cfg).With(map[string]interface{}{"mode": "watch"})

	interval := compileWatchInterval
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}

	wCfg := watcher.Config{
		Enabled:        true,
		DebounceMs:     cfg.Watch.DebounceMs,
		IgnorePatterns: cfg.Watch.IgnorePatterns,
		PollInterval:   interval,
	}

	handler := func(events []watcher.Event) {
		fmt.Printf("\n%d change(s) detected, recompiling...\n", len(events))
		if err := runOnce(mf.Sources); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Println("watching for changes...")
	}

	w := watcher.New(wCfg, logger, handler)
	if err := w.Watch(repoRoot, mf.Sources); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Printf("watching %d source(s) for changes (Ctrl+C to stop)\n", len(mf.Sources))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nstopping watch...")
	return nil
}
