package main

import (
	"github.com/spf13/cobra"

	"incrc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "incrc",
	Short: "incrc - incremental compilation driver",
	Long: `incrc drives an incremental compile loop over a declared
source set: stamp-based change detection, a class-file manager with
transactional rollback, and name-hashing invalidation across compile
cycles.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("incrc version {{.Version}}\n")
}
