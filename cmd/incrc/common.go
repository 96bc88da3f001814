package main

import (
	"fmt"
	"os"

	"incrc/internal/analysis"
	"incrc/internal/config"
	"incrc/internal/driver"
	"incrc/internal/logging"
	"incrc/internal/paths"
)

// mustGetRepoRoot returns the compile root or exits on error.
func mustGetRepoRoot() string {
	repoRoot, err := paths.FindRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return repoRoot
}

// mustLoadConfig loads .incrc/config.json or exits on error, falling back
// to defaults when unset (LoadConfig already does this internally).
func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds a logger from the config's logging section. Logs go to
// stderr (the logging package's default), keeping stdout free for command
// output.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
}

// driverOptionsFrom maps the on-disk DriverConfig onto driver.Options.
func driverOptionsFrom(dc config.DriverConfig) driver.Options {
	return driver.Options{
		StrictMode:           dc.StrictMode,
		ApiDebug:             dc.ApiDebug,
		UseOptimizedSealed:   dc.UseOptimizedSealed,
		RelationsDebug:       dc.RelationsDebug,
		Transactional:        dc.Transactional,
		RecompileAllFraction: dc.RecompileAllFraction,
		MaxCycles:            dc.MaxCycles,
	}
}

// loadPreviousOrEmpty returns the persisted Analysis, or an empty one if
// nothing has been compiled yet.
func loadPreviousOrEmpty(store interface {
	Latest() (*analysis.Analysis, bool, error)
}) (*analysis.Analysis, error) {
	previous, found, err := store.Latest()
	if err != nil {
		return nil, err
	}
	if !found {
		return analysis.Empty(), nil
	}
	return previous, nil
}

// emptyLookup is the classpath resolver used when no classpath jars are
// configured: every external binary name simply fails to resolve.
// callback.BinaryDependency then records the dependency as a library
// dependency, and changes.Detect reports every external binary name the
// previous Analysis references as changed.
type emptyLookup struct{}

func (emptyLookup) LookupAnalysis(string) (*analysis.AnalyzedClass, bool)      { return nil, false }
func (emptyLookup) LookupExternalClass(string) (*analysis.AnalyzedClass, bool) { return nil, false }
