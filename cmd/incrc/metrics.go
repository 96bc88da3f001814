package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"incrc/internal/paths"
	"incrc/internal/persist"
)

var metricsLimit int

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show recent compile run durations and sizes",
	Long: `metrics prints the last few driver runs recorded in the analysis
database: how many sources were compiled and how long each run took. This
is compile's own operational history, separate from the Analysis it
persists for incremental decisions.`,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().IntVar(&metricsLimit, "limit", 10, "Number of recent runs to show")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	store, err := persist.Open(paths.JoinRepoPath(repoRoot, cfg.AnalysisDB), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(metricsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no compile runs recorded yet")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("run %d: %d source(s) in %dms\n", r.ID, r.SourcesCompiled, r.DurationMs)
	}

	agg, err := store.RunAggregateSince(0)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d run(s) total, avg %.1fms\n", agg.RunCount, agg.AvgDurationMs())
	return nil
}
