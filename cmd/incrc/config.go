package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"incrc/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the incrc configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default .incrc/config.json",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, including any env overrides",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing config")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	configPath := filepath.Join(repoRoot, ".incrc", "config.json")

	if _, err := os.Stat(configPath); err == nil && !configForce {
		fmt.Println("incrc already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("Run 'incrc config init --force' to overwrite.")
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = "."
	if err := cfg.Save(repoRoot); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	result, err := config.LoadConfigWithDetails(repoRoot)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result.Config, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	if result.UsedDefaults {
		fmt.Fprintln(os.Stderr, "(no .incrc/config.json found, showing defaults)")
	}
	for _, o := range result.EnvOverrides {
		fmt.Fprintf(os.Stderr, "env override: %s -> %s = %v\n", o.EnvVar, o.Path, o.Value)
	}
	return nil
}
