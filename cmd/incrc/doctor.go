package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"incrc/internal/classfile"
	"incrc/internal/paths"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose and repair a crashed compile run's staging area",
	Long: `doctor inspects .incrc/staging for run directories left behind by a
process that crashed between Delete and Complete and rolls each
one back using its MANIFEST.toml. compile also runs this check
automatically on startup; doctor exists to run it standalone, e.g. after a
kill -9 with no compile scheduled next.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	stagingDir := paths.JoinRepoPath(repoRoot, cfg.Staging)

	recovered, err := classfile.RecoverStaging(stagingDir)
	if err != nil {
		return err
	}
	if len(recovered) == 0 {
		fmt.Println("no crashed runs found")
		return nil
	}

	fmt.Printf("recovered %d crashed run(s):\n", len(recovered))
	for _, id := range recovered {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
